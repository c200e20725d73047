package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// MaxIdentifierLength matches the vector store collection name limit.
	MaxIdentifierLength = 64

	// hashSuffixLength is "_" plus 8 hex characters.
	hashSuffixLength = 9

	// DefaultIdentifier is used when sanitization produces an empty result.
	DefaultIdentifier = "default"
)

// Identifier sanitizes a string for use as a collection name (^[a-z0-9_]{1,64}$).
//
//	"Engineering Docs" -> "engineering_docs"
//	"my-workspace!"    -> "my_workspace"
//	"" or "!!!"        -> "default"
//
// Identifiers longer than 64 characters are truncated and suffixed with a
// short hash of the full value so distinct inputs stay distinct.
func Identifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := true
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return DefaultIdentifier
	}
	if len(out) > MaxIdentifierLength {
		sum := sha256.Sum256([]byte(out))
		base := strings.TrimRight(out[:MaxIdentifierLength-hashSuffixLength], "_")
		out = base + "_" + hex.EncodeToString(sum[:])[:8]
	}
	return out
}

// NamespaceKey returns the vector collection name for a workspace slug.
func NamespaceKey(workspaceSlug string) string {
	return Identifier("ws_" + workspaceSlug)
}
