package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/fyrsmithlabs/docledger/internal/resolver"
	"github.com/fyrsmithlabs/docledger/internal/vectorindex"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const actor = "user42"

// fixture wires a Service over a real SQLite ledger, a file resolver on a
// temp documents root and a recording vector index.
type fixture struct {
	root      string
	scoped    string
	ledger    *ledger.Ledger
	ws        *ledger.Workspace
	index     *fakeIndex
	events    *recordingEvents
	telemetry *recordingTelemetry
	svc       *Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := ledger.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	l := ledger.New(store, zap.NewNop())
	t.Cleanup(func() { l.Close() })

	ws, err := l.CreateWorkspace(context.Background(), "engineering", "Engineering")
	require.NoError(t, err)

	f := &fixture{
		root:      root,
		scoped:    filepath.Join(root, actor),
		ledger:    l,
		ws:        ws,
		events:    &recordingEvents{},
		telemetry: &recordingTelemetry{},
	}
	f.index = &fakeIndex{ledger: l, failFor: map[string]error{}}
	f.svc = f.service(t, l, resolver.NewFileResolver(root, nil), zap.NewNop(), opts...)
	return f
}

func (f *fixture) service(t *testing.T, l Ledger, r Resolver, logger *zap.Logger, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(Deps{
		DocumentsRoot: f.root,
		Ledger:        l,
		Resolver:      r,
		Index:         f.index,
		Events:        f.events,
		Telemetry:     f.telemetry,
	}, logger, opts...)
	require.NoError(t, err)
	return svc
}

// writeDoc stores a parsed document under the actor's scoped root.
func (f *fixture) writeDoc(t *testing.T, rel, title, body string) {
	t.Helper()
	doc := map[string]any{"pageContent": body, "chunkSource": "localfile://" + rel}
	if title != "" {
		doc["title"] = title
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	f.writeFile(t, rel, data)
}

func (f *fixture) writeFile(t *testing.T, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(f.scoped, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func (f *fixture) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(f.scoped, filepath.FromSlash(rel)))
	return err == nil
}

// fakeIndex records calls and fails for configured locations. On Remove it
// records whether the ledger row still existed, pinning delete ordering.
type fakeIndex struct {
	ledger             *ledger.Ledger
	mu                 sync.Mutex
	failFor            map[string]error
	removeErr          error
	added              []vectorindex.Entry
	removed            []string
	rowPresentOnRemove []bool
}

func (x *fakeIndex) Add(_ context.Context, _ string, entry vectorindex.Entry, location string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err, ok := x.failFor[location]; ok {
		return err
	}
	x.added = append(x.added, entry)
	return nil
}

func (x *fakeIndex) Remove(ctx context.Context, _ string, docID string) error {
	present := x.ledger.Get(ctx, ledger.Filter{DocID: docID}) != nil
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removed = append(x.removed, docID)
	x.rowPresentOnRemove = append(x.rowPresentOnRemove, present)
	return x.removeErr
}

type recordedEvent struct {
	Name     string
	Metadata map[string]any
	ActorID  string
}

type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEvents) Record(_ context.Context, event string, metadata map[string]any, actorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event, metadata, actorID})
}

func (r *recordingEvents) named(name string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type recordingTelemetry struct {
	mu      sync.Mutex
	signals []recordedEvent
}

func (r *recordingTelemetry) Record(_ context.Context, event string, dims map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, recordedEvent{Name: event, Metadata: dims})
}

// overlapGauge measures how many calls run at once. When barrier > 0 each
// call waits until that many calls are in flight, or a timeout passes.
type overlapGauge struct {
	mu        sync.Mutex
	active    int
	maxActive int
	order     []string
	barrier   int
	arrived   int
	release   chan struct{}
}

func newOverlapGauge(barrier int) *overlapGauge {
	return &overlapGauge{barrier: barrier, release: make(chan struct{})}
}

func (p *overlapGauge) enter(name string) {
	p.mu.Lock()
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	p.order = append(p.order, name)
	p.arrived++
	if p.barrier > 0 && p.arrived == p.barrier {
		close(p.release)
	}
	p.mu.Unlock()

	if p.barrier > 0 {
		select {
		case <-p.release:
		case <-time.After(2 * time.Second):
		}
	} else {
		time.Sleep(5 * time.Millisecond)
	}
}

func (p *overlapGauge) exit() {
	p.mu.Lock()
	p.active--
	p.mu.Unlock()
}

// gaugedResolver wraps a Resolver with an overlapGauge.
type gaugedResolver struct {
	Resolver
	gauge *overlapGauge
}

func (r gaugedResolver) Resolve(ctx context.Context, locator, actorID string) (*resolver.Content, error) {
	r.gauge.enter(locator)
	defer r.gauge.exit()
	return r.Resolver.Resolve(ctx, locator, actorID)
}

// failingCreateLedger is a real ledger whose Create always fails.
type failingCreateLedger struct {
	*ledger.Ledger
}

var errDiskFull = errors.New("disk full")

func (failingCreateLedger) Create(context.Context, ledger.Document) (*ledger.Document, error) {
	return nil, fmt.Errorf("%w: %w", ledger.ErrPersistence, errDiskFull)
}
