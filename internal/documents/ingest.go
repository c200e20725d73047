package documents

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/docledger/internal/events"
	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/fyrsmithlabs/docledger/internal/sanitize"
	"github.com/fyrsmithlabs/docledger/internal/telemetry"
	"github.com/fyrsmithlabs/docledger/internal/vectorindex"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ingestStatus int

const (
	ingestUnresolved ingestStatus = iota
	ingestEmbedded
	ingestFailed
	ingestSkipped
	ingestOrphaned
)

type ingestOutcome struct {
	status      ingestStatus
	displayName string
	err         string
}

// AddDocuments vectorizes each location into workspace and records a ledger
// row for every success. Locations are normalized first and the normalized
// form is the stored docpath. Items that cannot be resolved are dropped
// silently; items that fail to vectorize are reported in FailedToEmbed.
//
// A ledger write failure after vectorization leaves orphan vectors: the
// location is reported in Orphaned, not Embedded, and the fault is logged,
// counted and published as an orphan_vector event.
func (s *Service) AddDocuments(ctx context.Context, workspace *ledger.Workspace, locations []string, actorID string) (AddResult, error) {
	result := AddResult{Embedded: []string{}, FailedToEmbed: []string{}, Errors: []string{}}
	if workspace == nil || workspace.ID == 0 {
		return result, fmt.Errorf("%w: workspace is required", ErrInvalidInput)
	}

	ctx, span := s.tracer.Start(ctx, "documents.add")
	defer span.End()
	span.SetAttributes(
		attribute.String("workspace", workspace.Slug),
		attribute.Int("locations", len(locations)),
	)

	locations = normalizeAll(locations)
	if s.policy.DedupeDocpaths {
		mu := s.workspaceLock(workspace.ID)
		mu.Lock()
		defer mu.Unlock()
		locations = uniqueStrings(locations)
	}

	outcomes := make([]ingestOutcome, len(locations))
	runErr := runEach(ctx, s.policy.Ingestion, s.policy.Concurrency, len(locations), func(ctx context.Context, i int) {
		outcomes[i] = s.ingestOne(ctx, workspace, locations[i], actorID)
	})

	seenErr := make(map[string]bool)
	for i, o := range outcomes {
		switch o.status {
		case ingestEmbedded:
			result.Embedded = append(result.Embedded, locations[i])
		case ingestFailed:
			result.FailedToEmbed = append(result.FailedToEmbed, o.displayName)
			if !seenErr[o.err] {
				seenErr[o.err] = true
				result.Errors = append(result.Errors, o.err)
			}
		case ingestSkipped:
			result.Skipped = append(result.Skipped, locations[i])
		case ingestOrphaned:
			result.Orphaned = append(result.Orphaned, locations[i])
		}
	}

	DocumentsEmbedded.Add(float64(len(result.Embedded)))
	DocumentsFailed.Add(float64(len(result.FailedToEmbed)))
	span.SetAttributes(
		attribute.Int("embedded", len(result.Embedded)),
		attribute.Int("failed", len(result.FailedToEmbed)),
	)

	if len(locations) > 0 {
		n := len(result.Embedded)
		s.telemetry.Record(ctx, telemetry.DocumentsEmbedded, map[string]any{"count": n})
		s.events.Record(ctx, events.DocumentsAdded, map[string]any{
			"numberOfDocumentsAdded":     n,
			"numberOfDocumentsRequested": len(locations),
			"workspaceName":              workspace.Name,
		}, actorID)
	}

	s.log(ctx).Info("documents added",
		zap.String("workspace", workspace.Slug),
		zap.Int("requested", len(locations)),
		zap.Int("embedded", len(result.Embedded)),
		zap.Int("failed", len(result.FailedToEmbed)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("orphaned", len(result.Orphaned)))

	if runErr != nil {
		return result, fmt.Errorf("adding documents interrupted: %w", runErr)
	}
	return result, nil
}

func (s *Service) ingestOne(ctx context.Context, workspace *ledger.Workspace, location, actorID string) ingestOutcome {
	log := s.log(ctx).With(zap.String("location", location), zap.String("workspace", workspace.Slug))

	if s.policy.DedupeDocpaths {
		if existing := s.ledger.Get(ctx, ledger.Filter{DocPath: location, WorkspaceID: workspace.ID}); existing != nil {
			log.Debug("location already embedded", zap.String("doc_id", existing.DocID))
			return ingestOutcome{status: ingestSkipped}
		}
	}

	content, err := s.resolver.Resolve(ctx, location, actorID)
	if err != nil {
		log.Debug("skipping unresolvable location", zap.Error(err))
		return ingestOutcome{status: ingestUnresolved}
	}

	docID := uuid.NewString()
	entry := vectorindex.Entry{
		DocID:      docID,
		Title:      content.Title,
		Body:       content.PageContent,
		SourceType: content.SourceType(),
	}
	if err := s.index.Add(ctx, workspace.Slug, entry, location); err != nil {
		log.Warn("vectorization failed", zap.Error(err))
		return ingestOutcome{
			status:      ingestFailed,
			displayName: content.DisplayName(filenameOf(location)),
			err:         err.Error(),
		}
	}

	doc := ledger.Document{
		DocID:       docID,
		Filename:    filenameOf(location),
		DocPath:     location,
		WorkspaceID: workspace.ID,
		Metadata:    ledger.Metadata(content.Metadata),
	}
	if _, err := s.ledger.Create(ctx, doc); err != nil {
		log.Error("ledger write failed after vectorization; vectors are orphaned",
			zap.String("doc_id", docID),
			zap.Error(err))
		OrphanVectors.Inc()
		s.events.Record(ctx, events.OrphanVector, map[string]any{
			"docId":         docID,
			"docpath":       location,
			"workspaceName": workspace.Name,
			"error":         err.Error(),
		}, actorID)
		return ingestOutcome{status: ingestOrphaned}
	}
	return ingestOutcome{status: ingestEmbedded}
}

// UploadToWorkspaces ingests one location into every workspace named by
// slugs, in order. Unknown slugs are reported without aborting the others.
func (s *Service) UploadToWorkspaces(ctx context.Context, slugs []string, location, actorID string) (UploadResult, error) {
	result := UploadResult{Location: location, Workspaces: []WorkspaceUpload{}}
	if strings.TrimSpace(location) == "" {
		return result, fmt.Errorf("%w: location is required", ErrInvalidInput)
	}
	slugs = uniqueStrings(slugs)
	if len(slugs) == 0 {
		return result, fmt.Errorf("%w: at least one workspace is required", ErrInvalidInput)
	}

	bySlug := make(map[string]ledger.Workspace)
	for _, ws := range s.ledger.WorkspacesBySlugs(ctx, slugs) {
		bySlug[ws.Slug] = ws
	}

	for _, slug := range slugs {
		ws, ok := bySlug[slug]
		if !ok {
			result.Workspaces = append(result.Workspaces, WorkspaceUpload{
				Slug:  slug,
				Error: fmt.Sprintf("workspace %q %s", slug, ErrNotFound),
			})
			continue
		}
		res, err := s.AddDocuments(ctx, &ws, []string{location}, actorID)
		entry := WorkspaceUpload{Slug: slug, Result: &res}
		if err != nil {
			entry.Error = err.Error()
		}
		result.Workspaces = append(result.Workspaces, entry)
	}
	return result, nil
}

// filenameOf returns the second "/" segment of location, or location itself
// when it has a single segment.
func filenameOf(location string) string {
	parts := strings.Split(location, "/")
	if len(parts) < 2 {
		return location
	}
	return parts[1]
}

// normalizeAll maps locations onto their docpath form. Entries that
// normalize to nothing are kept as-is so the resolver reports them.
func normalizeAll(locations []string) []string {
	out := make([]string, len(locations))
	for i, loc := range locations {
		if n := sanitize.NormalizePath(loc); n != "" {
			out[i] = n
			continue
		}
		out[i] = loc
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
