package documents

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/docledger/internal/ledger"
)

// Content returns the text of the embedded document with docID, resolved
// from the actor's file tree.
func (s *Service) Content(ctx context.Context, docID, actorID string) (string, error) {
	if docID == "" {
		return "", fmt.Errorf("%w: docId is required", ErrInvalidInput)
	}
	doc := s.ledger.Get(ctx, ledger.Filter{DocID: docID})
	if doc == nil {
		return "", fmt.Errorf("%w: document %s", ErrNotFound, docID)
	}
	return s.resolveBody(ctx, doc.DocPath, actorID)
}

// ContentByDocPath returns the text of docpath if it is embedded in any
// workspace.
func (s *Service) ContentByDocPath(ctx context.Context, docpath, actorID string) (string, error) {
	if docpath == "" {
		return "", fmt.Errorf("%w: docpath is required", ErrInvalidInput)
	}
	if s.ledger.Get(ctx, ledger.Filter{DocPath: docpath}) == nil {
		return "", fmt.Errorf("%w: document %s", ErrNotFound, docpath)
	}
	return s.resolveBody(ctx, docpath, actorID)
}

func (s *Service) resolveBody(ctx context.Context, docpath, actorID string) (string, error) {
	content, err := s.resolver.Resolve(ctx, docpath, actorID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return content.PageContent, nil
}
