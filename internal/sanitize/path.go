// Package sanitize provides path containment checks and identifier sanitization.
package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrPathTraversal indicates a path resolves outside its scoped root.
	ErrPathTraversal = errors.New("path escapes scoped root")

	// ErrEmptyPath indicates an empty path was provided.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrInvalidActorID indicates an actor ID cannot be used as a directory name.
	ErrInvalidActorID = errors.New("invalid actor ID")
)

var actorIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// IsContained reports whether candidate, once made absolute and cleaned, is
// root itself or a descendant of root.
func IsContained(root, candidate string) bool {
	if root == "" || candidate == "" {
		return false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(absRoot, absCandidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// ValidatePath returns the canonical absolute form of candidate, or
// ErrPathTraversal if it is not contained in root.
func ValidatePath(candidate, root string) (string, error) {
	if candidate == "" {
		return "", ErrEmptyPath
	}
	if !IsContained(root, candidate) {
		return "", fmt.Errorf("%w: %q is outside %q", ErrPathTraversal, candidate, root)
	}
	return filepath.Abs(candidate)
}

// NormalizePath trims and cleans a caller-supplied relative path. Paths that
// name the root itself (".", "/", "") normalize to "". Parent segments are
// kept so the containment check can reject them.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.ToSlash(filepath.Clean(p))
	if p == "." || p == "/" {
		return ""
	}
	return p
}

// Join resolves a caller-supplied relative path under root and verifies the
// result is contained in root. Absolute paths are rejected.
func Join(root, rel string) (string, error) {
	clean := NormalizePath(rel)
	if clean == "" {
		return "", ErrEmptyPath
	}
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("%w: absolute path %q", ErrPathTraversal, rel)
	}
	return ValidatePath(filepath.Join(root, filepath.FromSlash(clean)), root)
}

// ScopedRoot returns the directory an actor may operate in. An empty actorID
// scopes to documentsRoot itself.
func ScopedRoot(documentsRoot, actorID string) (string, error) {
	if documentsRoot == "" {
		return "", ErrEmptyPath
	}
	if actorID == "" {
		return filepath.Abs(documentsRoot)
	}
	if !actorIDPattern.MatchString(actorID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidActorID, actorID)
	}
	return ValidatePath(filepath.Join(documentsRoot, actorID), documentsRoot)
}
