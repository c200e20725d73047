package ledger

import (
	"net/url"
	"strings"
	"time"
)

// Document is one ledger row: a file embedded into a workspace under a docId.
type Document struct {
	ID            int64     `json:"id"`
	DocID         string    `json:"docId"`
	Filename      string    `json:"filename"`
	DocPath       string    `json:"docpath"`
	WorkspaceID   int64     `json:"workspaceId"`
	Metadata      Metadata  `json:"metadata"`
	Pinned        bool      `json:"pinned"`
	Watched       bool      `json:"watched"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// Metadata is the opaque document metadata blob produced by the resolver.
type Metadata map[string]any

// String returns the string value at key, or "".
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Title returns the document title recorded at ingestion.
func (d Document) Title() string {
	return d.Metadata.String("title")
}

// Source returns the source type and origin locator recorded in the
// metadata's chunkSource ("type://source"). See ParseSource.
func (d Document) Source() (sourceType, source string) {
	return ParseSource(d.Metadata.String("chunkSource"))
}

// sourcesWithTransientQuery carry credentials or cursors in their URL query.
var sourcesWithTransientQuery = map[string]bool{
	"confluence": true,
	"github":     true,
}

// ParseSource splits a chunkSource of the form "type://source". For
// confluence and github sources the query string is removed from the source
// URL. Unparseable input yields empty strings.
func ParseSource(chunkSource string) (sourceType, source string) {
	sourceType, source, ok := strings.Cut(chunkSource, "://")
	if !ok || sourceType == "" || source == "" || !isWord(sourceType) {
		return "", ""
	}
	if sourcesWithTransientQuery[sourceType] {
		source = stripQuery(source)
	}
	return sourceType, source
}

func stripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.ForceQuery = false
	return u.String()
}

func isWord(s string) bool {
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// Workspace is a vector namespace owner. Its slug keys the namespace.
type Workspace struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
