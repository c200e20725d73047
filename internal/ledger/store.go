package ledger

import (
	"context"
	"errors"
)

var (
	// ErrMissingID is returned when an operation needs a row id and got none.
	ErrMissingID = errors.New("no document id provided")

	// ErrPersistence wraps a store fault while writing a ledger row.
	ErrPersistence = errors.New("ledger persistence failed")

	// ErrWorkspaceExists is returned when creating a workspace whose slug is taken.
	ErrWorkspaceExists = errors.New("workspace already exists")

	// ErrWorkspaceNotFound is returned when a workspace slug does not resolve.
	ErrWorkspaceNotFound = errors.New("workspace not found")
)

// Store is the persistence port behind the Ledger. Implementations return
// faults as errors; the Ledger decides how they surface.
type Store interface {
	FindDocuments(ctx context.Context, filter Filter, query Query) ([]Document, error)
	CountDocuments(ctx context.Context, filter Filter) (int, error)
	InsertDocument(ctx context.Context, doc *Document) error
	UpdateDocuments(ctx context.Context, filter Filter, set map[Field]any) (int64, error)
	DeleteDocuments(ctx context.Context, filter Filter) (int64, error)

	// PurgeDocument removes the row and its vector associations atomically.
	PurgeDocument(ctx context.Context, id int64, docID string) error

	InsertVectors(ctx context.Context, docID string, vectorIDs []string) error
	VectorIDs(ctx context.Context, docID string) ([]string, error)

	CreateWorkspace(ctx context.Context, ws *Workspace) error
	FindWorkspaces(ctx context.Context, slugs []string) ([]Workspace, error)

	Close() error
}
