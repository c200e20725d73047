package documents

import (
	"context"

	"github.com/fyrsmithlabs/docledger/internal/events"
	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/fyrsmithlabs/docledger/internal/sanitize"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RemoveDocuments unembeds each docpath from workspace. For every row found
// the vectors are deleted first, best-effort, and the row with its vector
// associations is purged second. Paths with no row are ignored. It returns
// false only for a malformed call.
func (s *Service) RemoveDocuments(ctx context.Context, workspace *ledger.Workspace, paths []string, actorID string) bool {
	if workspace == nil || workspace.ID == 0 {
		return false
	}

	ctx, span := s.tracer.Start(ctx, "documents.remove")
	defer span.End()
	span.SetAttributes(
		attribute.String("workspace", workspace.Slug),
		attribute.Int("paths", len(paths)),
	)

	_ = runEach(ctx, s.policy.Removal, s.policy.Concurrency, len(paths), func(ctx context.Context, i int) {
		s.removeOne(ctx, workspace, paths[i])
	})

	s.events.Record(ctx, events.DocumentsRemoved, map[string]any{
		"numberOfDocuments": len(paths),
		"workspaceName":     workspace.Name,
	}, actorID)
	return true
}

func (s *Service) removeOne(ctx context.Context, workspace *ledger.Workspace, path string) {
	doc := s.ledger.Get(ctx, ledger.Filter{DocPaths: docpathForms(path), WorkspaceID: workspace.ID})
	if doc == nil {
		return
	}
	log := s.log(ctx).With(zap.String("docpath", path), zap.String("doc_id", doc.DocID))

	if err := s.index.Remove(ctx, workspace.Slug, doc.DocID); err != nil {
		log.Warn("vector removal failed; purging ledger row anyway", zap.Error(err))
	}
	if s.ledger.Purge(ctx, *doc) {
		DocumentsRemoved.Inc()
		log.Debug("document removed")
	}
}

// docpathForms returns path and its normalized form, so rows stored before
// normalization and rows stored after are both found.
func docpathForms(path string) []string {
	n := sanitize.NormalizePath(path)
	if n == "" || n == path {
		return []string{path}
	}
	return []string{path, n}
}

// UpdateEmbeddings removes deletes and then adds adds, in one call.
func (s *Service) UpdateEmbeddings(ctx context.Context, workspace *ledger.Workspace, adds, deletes []string, actorID string) (AddResult, error) {
	if len(deletes) > 0 {
		s.RemoveDocuments(ctx, workspace, deletes, actorID)
	}
	return s.AddDocuments(ctx, workspace, adds, actorID)
}
