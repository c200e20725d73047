package documents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/fyrsmithlabs/docledger/internal/sanitize"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Relocation messages.
const (
	msgMoveFailed   = "Failed to move some files."
	msgNotMovedTmpl = "%d/%d files not moved. Unembed them from all workspaces."
)

// MoveEntries renames files inside the actor's scoped root. Moves whose
// source is referenced by any ledger row, in any workspace, are skipped.
// Moves that escape the root are rejected without being attempted.
//
// With FailBatch any fault makes the result unsuccessful and the error wraps
// ErrRelocationFailed. With ReportPartial faults are only listed.
func (s *Service) MoveEntries(ctx context.Context, actorID string, moves []Move) (MoveResult, error) {
	result := MoveResult{Moved: []Move{}, Skipped: []Move{}, Failed: []MoveFailure{}}

	root, err := sanitize.ScopedRoot(s.root, actorID)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	ctx, span := s.tracer.Start(ctx, "documents.move")
	defer span.End()
	span.SetAttributes(attribute.Int("moves", len(moves)))

	embedded := s.embeddedPaths(ctx, moves)

	type job struct {
		move     Move
		src, dst string
	}
	var (
		jobs         []job
		containments int
	)
	for _, m := range moves {
		if embedded[m.From] || embedded[sanitize.NormalizePath(m.From)] {
			result.Skipped = append(result.Skipped, m)
			continue
		}
		src, dst, err := s.guardMove(root, m)
		if err != nil {
			if errors.Is(err, ErrPathTraversal) {
				containments++
			}
			result.Failed = append(result.Failed, MoveFailure{Move: m, Error: err.Error(), Err: err})
			continue
		}
		jobs = append(jobs, job{move: m, src: src, dst: dst})
	}

	errs := make([]error, len(jobs))
	started := make([]bool, len(jobs))
	runErr := runEach(ctx, s.policy.Relocation, s.policy.Concurrency, len(jobs), func(_ context.Context, i int) {
		started[i] = true
		errs[i] = s.relocate(jobs[i].src, jobs[i].dst)
	})
	for i, j := range jobs {
		err := errs[i]
		if !started[i] {
			err = runErr
		}
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrRelocationFailed, err)
			result.Failed = append(result.Failed, MoveFailure{Move: j.move, Error: err.Error(), Err: err})
			continue
		}
		result.Moved = append(result.Moved, j.move)
	}

	FilesMoved.WithLabelValues("moved").Add(float64(len(result.Moved)))
	FilesMoved.WithLabelValues("skipped").Add(float64(len(result.Skipped)))
	FilesMoved.WithLabelValues("failed").Add(float64(len(result.Failed)))
	span.SetAttributes(
		attribute.Int("moved", len(result.Moved)),
		attribute.Int("skipped", len(result.Skipped)),
		attribute.Int("failed", len(result.Failed)),
	)

	log := s.log(ctx)
	for _, f := range result.Failed {
		log.Warn("move failed", zap.String("from", f.From), zap.String("to", f.To), zap.Error(f.Err))
	}

	if runErr != nil {
		result.Success = false
		result.Message = msgMoveFailed
		return result, fmt.Errorf("%w: %w", ErrRelocationFailed, runErr)
	}

	total := len(moves)
	if len(result.Failed) > 0 && s.policy.OnMoveFault == FailBatch {
		result.Success = false
		result.Message = msgMoveFailed
		err := fmt.Errorf("%w: %d of %d moves failed", ErrRelocationFailed, len(result.Failed), total)
		if containments > 0 {
			err = fmt.Errorf("%w (%d outside scoped root: %w)", err, containments, ErrPathTraversal)
		}
		return result, err
	}

	result.Success = true
	switch {
	case len(result.Failed) > 0 && len(result.Skipped) > 0:
		result.Message = fmt.Sprintf("%d/%d files failed to move. "+msgNotMovedTmpl,
			len(result.Failed), total, len(result.Skipped), total)
	case len(result.Failed) > 0:
		result.Message = fmt.Sprintf("%d/%d files failed to move.", len(result.Failed), total)
	case len(result.Skipped) > 0:
		result.Message = fmt.Sprintf(msgNotMovedTmpl, len(result.Skipped), total)
	}
	return result, nil
}

// embeddedPaths returns the set of move sources referenced by a ledger row.
func (s *Service) embeddedPaths(ctx context.Context, moves []Move) map[string]bool {
	froms := make([]string, 0, len(moves)*2)
	for _, m := range moves {
		froms = append(froms, m.From)
		if n := sanitize.NormalizePath(m.From); n != m.From {
			froms = append(froms, n)
		}
	}
	set := make(map[string]bool)
	if len(froms) == 0 {
		return set
	}
	for _, doc := range s.ledger.Where(ctx, ledger.Filter{DocPaths: froms}, ledger.WithFields(ledger.FieldDocPath)) {
		set[doc.DocPath] = true
	}
	return set
}

// guardMove resolves both ends of m under root.
func (s *Service) guardMove(root string, m Move) (src, dst string, err error) {
	src, err = sanitize.Join(root, m.From)
	if err != nil {
		return "", "", classifyPathErr("from", err)
	}
	dst, err = sanitize.Join(root, m.To)
	if err != nil {
		return "", "", classifyPathErr("to", err)
	}
	return src, dst, nil
}

func (s *Service) relocate(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating destination folder: %w", err)
	}
	return s.rename(src, dst)
}

func classifyPathErr(end string, err error) error {
	if errors.Is(err, sanitize.ErrEmptyPath) {
		return fmt.Errorf("%w: %s path is required", ErrInvalidInput, end)
	}
	return fmt.Errorf("%s: %w", end, err)
}
