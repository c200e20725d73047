package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MsgNoValidFields is the soft result of an update naming no mutable field.
const MsgNoValidFields = "No valid fields to update!"

// UpdateResult is the outcome of Update. Exactly one of Document and
// Message is set.
type UpdateResult struct {
	Document *Document `json:"document"`
	Message  string    `json:"message,omitempty"`
}

// Ledger is the record of which files are embedded into which workspace.
//
// Read operations never fail: store faults are logged and surface as empty
// results (nil, empty slice, zero count, false).
type Ledger struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// New returns a Ledger over store.
func New(store Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:  store,
		logger: logger.Named("ledger"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the first document matching filter, or nil.
func (l *Ledger) Get(ctx context.Context, filter Filter) *Document {
	docs, err := l.store.FindDocuments(ctx, filter, Query{Limit: 1})
	if err != nil {
		l.logger.Error("get document failed", zap.Error(err))
		return nil
	}
	if len(docs) == 0 {
		return nil
	}
	return &docs[0]
}

// Where returns every document matching filter.
func (l *Ledger) Where(ctx context.Context, filter Filter, opts ...QueryOption) []Document {
	var q Query
	for _, opt := range opts {
		opt(&q)
	}
	docs, err := l.store.FindDocuments(ctx, filter, q)
	if err != nil {
		l.logger.Error("query documents failed", zap.Error(err))
		return []Document{}
	}
	if docs == nil {
		return []Document{}
	}
	return docs
}

// ForWorkspace returns every document in workspaceID. A zero id yields none.
func (l *Ledger) ForWorkspace(ctx context.Context, workspaceID int64) []Document {
	if workspaceID == 0 {
		return []Document{}
	}
	return l.Where(ctx, Filter{WorkspaceID: workspaceID})
}

// Count returns the number of documents matching filter.
func (l *Ledger) Count(ctx context.Context, filter Filter) int {
	n, err := l.store.CountDocuments(ctx, filter)
	if err != nil {
		l.logger.Error("count documents failed", zap.Error(err))
		return 0
	}
	return n
}

// Delete removes every document matching filter. An empty filter deletes
// nothing and reports false.
func (l *Ledger) Delete(ctx context.Context, filter Filter) bool {
	if filter.IsEmpty() {
		l.logger.Warn("refusing to delete with an empty filter")
		return false
	}
	if _, err := l.store.DeleteDocuments(ctx, filter); err != nil {
		l.logger.Error("delete documents failed", zap.Error(err))
		return false
	}
	return true
}

// Purge removes doc and its vector associations in one step.
func (l *Ledger) Purge(ctx context.Context, doc Document) bool {
	if err := l.store.PurgeDocument(ctx, doc.ID, doc.DocID); err != nil {
		l.logger.Error("purge document failed",
			zap.String("doc_id", doc.DocID),
			zap.Error(err))
		return false
	}
	return true
}

// Update changes the mutable fields of the row with id. Keys outside the
// mutable set are dropped; if none remain nothing is written and the result
// carries MsgNoValidFields. A zero id is a caller error.
func (l *Ledger) Update(ctx context.Context, id int64, attrs Attrs) (UpdateResult, error) {
	if id == 0 {
		return UpdateResult{}, ErrMissingID
	}
	set := attrs.Mutable()
	if len(set) == 0 {
		return UpdateResult{Message: MsgNoValidFields}, nil
	}

	if _, err := l.store.UpdateDocuments(ctx, Filter{ID: id}, set); err != nil {
		l.logger.Error("update document failed", zap.Int64("id", id), zap.Error(err))
		return UpdateResult{Message: err.Error()}, nil
	}
	doc := l.Get(ctx, Filter{ID: id})
	if doc == nil {
		return UpdateResult{Message: fmt.Sprintf("document %d not found", id)}, nil
	}
	return UpdateResult{Document: doc}, nil
}

// UpdateAll applies the mutable subset of attrs to every row matching filter
// and returns the number of rows changed.
func (l *Ledger) UpdateAll(ctx context.Context, filter Filter, attrs Attrs) int64 {
	set := attrs.Mutable()
	if len(set) == 0 || filter.IsEmpty() {
		return 0
	}
	n, err := l.store.UpdateDocuments(ctx, filter, set)
	if err != nil {
		l.logger.Error("bulk update failed", zap.Error(err))
		return 0
	}
	return n
}

// Create persists doc. Unlike the read operations, a store fault is returned
// wrapped in ErrPersistence.
func (l *Ledger) Create(ctx context.Context, doc Document) (*Document, error) {
	now := l.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.LastUpdatedAt.IsZero() {
		doc.LastUpdatedAt = now
	}
	if err := l.store.InsertDocument(ctx, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return &doc, nil
}

// AddVectors records the vector ids stored for docID.
func (l *Ledger) AddVectors(ctx context.Context, docID string, vectorIDs []string) error {
	if err := l.store.InsertVectors(ctx, docID, vectorIDs); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// VectorIDs lists the vector ids recorded for docID.
func (l *Ledger) VectorIDs(ctx context.Context, docID string) []string {
	ids, err := l.store.VectorIDs(ctx, docID)
	if err != nil {
		l.logger.Error("list vector ids failed", zap.String("doc_id", docID), zap.Error(err))
		return nil
	}
	return ids
}

// ==================== Workspaces ====================

// CreateWorkspace registers a workspace under slug.
func (l *Ledger) CreateWorkspace(ctx context.Context, slug, name string) (*Workspace, error) {
	if slug == "" {
		return nil, fmt.Errorf("workspace slug is required")
	}
	if name == "" {
		name = slug
	}
	ws := &Workspace{Slug: slug, Name: name, CreatedAt: l.now()}
	if err := l.store.CreateWorkspace(ctx, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// WorkspaceBySlug returns the workspace with slug, or nil.
func (l *Ledger) WorkspaceBySlug(ctx context.Context, slug string) *Workspace {
	found := l.WorkspacesBySlugs(ctx, []string{slug})
	if len(found) == 0 {
		return nil
	}
	return &found[0]
}

// WorkspacesBySlugs returns the workspaces whose slug is listed. Unknown
// slugs are skipped.
func (l *Ledger) WorkspacesBySlugs(ctx context.Context, slugs []string) []Workspace {
	found, err := l.store.FindWorkspaces(ctx, slugs)
	if err != nil {
		l.logger.Error("query workspaces failed", zap.Error(err))
		return []Workspace{}
	}
	if found == nil {
		return []Workspace{}
	}
	return found
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}
