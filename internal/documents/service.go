package documents

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/fyrsmithlabs/docledger/internal/events"
	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/fyrsmithlabs/docledger/internal/logging"
	"github.com/fyrsmithlabs/docledger/internal/resolver"
	"github.com/fyrsmithlabs/docledger/internal/vectorindex"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/docledger/internal/documents"

// Resolver loads a document's parsed content from an actor's file tree.
type Resolver interface {
	Resolve(ctx context.Context, locator, actorID string) (*resolver.Content, error)
}

// VectorIndex stores and removes a document's vectors under a workspace.
type VectorIndex interface {
	Add(ctx context.Context, workspace string, entry vectorindex.Entry, location string) error
	Remove(ctx context.Context, workspace, docID string) error
}

// TelemetrySink records anonymous usage signals.
type TelemetrySink interface {
	Record(ctx context.Context, event string, dimensions map[string]any)
}

// Ledger is the subset of *ledger.Ledger the orchestrators use.
type Ledger interface {
	Get(ctx context.Context, filter ledger.Filter) *ledger.Document
	Where(ctx context.Context, filter ledger.Filter, opts ...ledger.QueryOption) []ledger.Document
	Create(ctx context.Context, doc ledger.Document) (*ledger.Document, error)
	Purge(ctx context.Context, doc ledger.Document) bool
	WorkspacesBySlugs(ctx context.Context, slugs []string) []ledger.Workspace
}

// Deps are the collaborators of a Service. Ledger, Resolver and Index are
// required.
type Deps struct {
	DocumentsRoot string
	Ledger        Ledger
	Resolver      Resolver
	Index         VectorIndex
	Events        events.Sink
	Telemetry     TelemetrySink
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the scheduling and fault policy.
func WithPolicy(p Policy) Option {
	return func(s *Service) {
		s.policy = p.withDefaults()
	}
}

// WithRenamer replaces os.Rename for relocations.
func WithRenamer(rename func(oldpath, newpath string) error) Option {
	return func(s *Service) {
		s.rename = rename
	}
}

// Service implements the document lifecycle operations.
type Service struct {
	root      string
	ledger    Ledger
	resolver  Resolver
	index     VectorIndex
	events    events.Sink
	telemetry TelemetrySink
	policy    Policy
	rename    func(oldpath, newpath string) error
	logger    *zap.Logger
	tracer    trace.Tracer

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewService returns a Service over deps.
func NewService(deps Deps, logger *zap.Logger, opts ...Option) (*Service, error) {
	if deps.Ledger == nil || deps.Resolver == nil || deps.Index == nil {
		return nil, errors.New("ledger, resolver and vector index are required")
	}
	if deps.DocumentsRoot == "" {
		return nil, errors.New("documents root is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Telemetry == nil {
		deps.Telemetry = nopTelemetry{}
	}

	s := &Service{
		root:      deps.DocumentsRoot,
		ledger:    deps.Ledger,
		resolver:  deps.Resolver,
		index:     deps.Index,
		events:    deps.Events,
		telemetry: deps.Telemetry,
		policy:    DefaultPolicy().withDefaults(),
		rename:    os.Rename,
		logger:    logger.Named("documents"),
		tracer:    otel.Tracer(instrumentationName),
		locks:     make(map[int64]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Policy returns the effective policy.
func (s *Service) Policy() Policy {
	return s.policy
}

// log returns the service logger carrying ctx's correlation fields.
func (s *Service) log(ctx context.Context) *zap.Logger {
	return s.logger.With(logging.ContextFields(ctx)...)
}

// workspaceLock serializes dedupe-mode ingestion per workspace.
func (s *Service) workspaceLock(id int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

type nopTelemetry struct{}

func (nopTelemetry) Record(context.Context, string, map[string]any) {}
