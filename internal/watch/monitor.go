// Package watch marks watched documents as updated when their source file
// changes on disk.
//
// The monitor watches every directory under the documents root. A change to
// <root>/<actor>/<docpath> (or <root>/<docpath> for actor-less trees) bumps
// lastUpdatedAt on every watched ledger row with that docpath. Re-embedding
// the changed content is left to the caller.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/fyrsmithlabs/docledger/internal/ignore"
	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher could not start.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Ledger is the subset of *ledger.Ledger the monitor uses.
type Ledger interface {
	UpdateAll(ctx context.Context, filter ledger.Filter, attrs ledger.Attrs) int64
}

// Monitor turns file writes under a documents root into ledger updates.
type Monitor struct {
	root     string
	ledger   Ledger
	debounce time.Duration
	logger   *zap.Logger
	now      func() time.Time
	ignore   *ignore.Matcher

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithIgnore skips files and directories matched by m.
func WithIgnore(m *ignore.Matcher) Option {
	return func(mon *Monitor) { mon.ignore = m }
}

// NewMonitor creates a monitor over root. Events for the same file within
// debounce are coalesced.
func NewMonitor(root string, l Ledger, debounce time.Duration, logger *zap.Logger, opts ...Option) (*Monitor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	m := &Monitor{
		root:     root,
		ledger:   l,
		debounce: debounce,
		logger:   logger.Named("watch"),
		now:      func() time.Time { return time.Now().UTC() },
		watcher:  w,
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run watches until ctx is done, then closes the watcher.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.watcher.Close()

	if err := m.addTree(m.root); err != nil {
		return err
	}
	m.logger.Info("watching documents", zap.String("root", m.root))

	ticker := time.NewTicker(m.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.flush(context.WithoutCancel(ctx))
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			m.handle(event)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("watcher error", zap.Error(err))
		case <-ticker.C:
			m.flush(ctx)
		}
	}
}

func (m *Monitor) handle(event fsnotify.Event) {
	dir := isDir(event.Name)
	if m.ignored(event.Name, dir) {
		return
	}
	switch {
	case event.Op.Has(fsnotify.Create):
		if dir {
			if err := m.addTree(event.Name); err != nil {
				m.logger.Warn("watching new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
		m.mark(event.Name)
	case event.Op.Has(fsnotify.Write):
		m.mark(event.Name)
	}
}

func (m *Monitor) mark(path string) {
	m.mu.Lock()
	m.pending[path] = struct{}{}
	m.mu.Unlock()
}

// flush applies every pending change to the ledger.
func (m *Monitor) flush(ctx context.Context) {
	m.mu.Lock()
	paths := make([]string, 0, len(m.pending))
	for p := range m.pending {
		paths = append(paths, p)
	}
	clear(m.pending)
	m.mu.Unlock()

	if len(paths) == 0 {
		return
	}

	var docpaths []string
	for _, p := range paths {
		docpaths = append(docpaths, m.candidates(p)...)
	}
	if len(docpaths) == 0 {
		return
	}

	watched := true
	n := m.ledger.UpdateAll(ctx,
		ledger.Filter{DocPaths: docpaths, Watched: &watched},
		ledger.Attrs{string(ledger.FieldLastUpdatedAt): m.now()})
	if n > 0 {
		m.logger.Info("watched documents changed", zap.Int64("rows", n), zap.Int("files", len(paths)))
	}
}

// candidates returns the docpaths a changed file may be recorded under: its
// path relative to the root, and that path without the leading actor segment.
// Rows do not record the actor, so a change under one actor's tree also
// bumps watched rows holding the same actor-relative docpath for other actors.
func (m *Monitor) candidates(path string) []string {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	rel = filepath.ToSlash(rel)
	out := []string{rel}
	if _, rest, ok := strings.Cut(rel, "/"); ok {
		out = append(out, rest)
	}
	return out
}

func (m *Monitor) ignored(path string, dir bool) bool {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return false
	}
	return m.ignore.Match(rel, dir)
}

func (m *Monitor) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if m.ignored(path, true) {
			return filepath.SkipDir
		}
		if err := m.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
