// Package resolver loads parsed documents from an actor's scoped file tree.
//
// A locator is a path relative to the scoped root, e.g.
// "custom-documents/notes.json". Each file holds one parsed document as
// JSON: a title, the extracted text under pageContent, an origin under
// chunkSource, and any further fields the parser produced.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fyrsmithlabs/docledger/internal/sanitize"
	"go.uber.org/zap"
)

// Errors for resolution.
var (
	// ErrNotFound indicates no document exists at the locator.
	ErrNotFound = errors.New("document not found")

	// ErrUnreadable indicates the document exists but cannot be parsed.
	ErrUnreadable = errors.New("document unreadable")
)

// Content is a resolved document.
type Content struct {
	Title       string
	PageContent string
	ChunkSource string
	// Metadata holds every field of the file except pageContent.
	Metadata map[string]any
}

// DisplayName returns the title, or fallback when the document has none.
func (c *Content) DisplayName(fallback string) string {
	if c != nil && c.Title != "" {
		return c.Title
	}
	return fallback
}

// SourceType returns the "type" part of a "type://source" chunkSource.
func (c *Content) SourceType() string {
	for i := 0; i+2 < len(c.ChunkSource); i++ {
		if c.ChunkSource[i:i+3] == "://" {
			return c.ChunkSource[:i]
		}
	}
	return ""
}

// FileResolver resolves locators against <documentsRoot>/<actorID>.
type FileResolver struct {
	documentsRoot string
	logger        *zap.Logger
}

// NewFileResolver returns a resolver rooted at documentsRoot.
func NewFileResolver(documentsRoot string, logger *zap.Logger) *FileResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileResolver{documentsRoot: documentsRoot, logger: logger.Named("resolver")}
}

// Resolve reads and parses the document at locator in actorID's tree.
// Locators escaping the tree are reported as ErrNotFound wrapping
// sanitize.ErrPathTraversal.
func (r *FileResolver) Resolve(ctx context.Context, locator, actorID string) (*Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, err := sanitize.ScopedRoot(r.documentsRoot, actorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	path, err := sanitize.Join(root, locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, locator)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	content, err := parse(data)
	if err != nil {
		r.logger.Debug("unparseable document", zap.String("locator", locator), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, locator, err)
	}
	return content, nil
}

func parse(data []byte) (*Content, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("document is null")
	}

	c := &Content{Metadata: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case "pageContent":
			s, ok := v.(string)
			if !ok {
				return nil, errors.New("pageContent is not a string")
			}
			c.PageContent = s
			continue
		case "title":
			c.Title, _ = v.(string)
		case "chunkSource":
			c.ChunkSource, _ = v.(string)
		}
		c.Metadata[k] = v
	}
	return c, nil
}
