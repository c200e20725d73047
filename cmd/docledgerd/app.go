package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docledger/internal/config"
	"github.com/fyrsmithlabs/docledger/internal/documents"
	"github.com/fyrsmithlabs/docledger/internal/embeddings"
	"github.com/fyrsmithlabs/docledger/internal/events"
	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/fyrsmithlabs/docledger/internal/logging"
	"github.com/fyrsmithlabs/docledger/internal/resolver"
	"github.com/fyrsmithlabs/docledger/internal/secrets"
	"github.com/fyrsmithlabs/docledger/internal/telemetry"
	"github.com/fyrsmithlabs/docledger/internal/vectorindex"
	"github.com/fyrsmithlabs/docledger/internal/vectorstore"
)

// app holds every initialized dependency of a running command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	ledger    *ledger.Ledger
	store     vectorstore.Store
	embedder  embeddings.Provider
	natsConn  *nats.Conn
	docs      *documents.Service
}

// loadConfig reads the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. stderr is used when stdout carries
// the MCP protocol.
func newLogger(cfg *config.Config, stderr bool) (*zap.Logger, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	lc.Level = level
	lc.Format = cfg.Logging.Format
	if stderr {
		lc.Output.Stdout = false
		lc.Output.Stderr = true
	}
	l, err := logging.NewLogger(lc, nil)
	if err != nil {
		return nil, err
	}
	return l.Underlying(), nil
}

// openLedger opens the SQLite ledger at cfg.Storage.LedgerPath.
func openLedger(cfg *config.Config, logger *zap.Logger) (*ledger.Ledger, error) {
	store, err := ledger.OpenSQLite(cfg.Storage.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	return ledger.New(store, logger), nil
}

// newApp initializes dependencies in order: telemetry, ledger, vector store,
// embeddings, events, then the document service. On error everything opened
// so far is closed.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	a.telemetry, err = telemetry.New(ctx, telemetry.FromConfig(cfg.Observability, version), logger)
	if err != nil {
		return nil, err
	}

	if a.ledger, err = openLedger(cfg, logger); err != nil {
		return nil, err
	}

	a.store, err = vectorstore.NewStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	a.embedder, err = embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		CacheDir:  cfg.Embeddings.CacheDir,
		Dimension: cfg.VectorStore.VectorSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	var redactor *secrets.Redactor
	if cfg.Ingestion.RedactSecrets {
		if redactor, err = secrets.NewRedactor(cfg.Ingestion.AllowlistPath); err != nil {
			return nil, fmt.Errorf("creating redactor: %w", err)
		}
	}

	var sink events.Sink = events.Nop{}
	if cfg.Events.Enabled {
		if a.natsConn, err = events.Connect(cfg.Events.NATSURL); err != nil {
			return nil, err
		}
		sink = events.NewNATSSink(a.natsConn, cfg.Events.SubjectPrefix, logger)
		logger.Info("connected to NATS", zap.String("url", cfg.Events.NATSURL))
	}

	index := vectorindex.New(a.store, a.embedder, vectorindex.Options{
		ChunkSize:    cfg.Ingestion.ChunkSize,
		ChunkOverlap: cfg.Ingestion.ChunkOverlap,
		RateLimit:    cfg.Ingestion.EmbedRateLimit,
		Burst:        cfg.Ingestion.EmbedBurst,
		Redactor:     redactor,
		Recorder:     a.ledger,
	}, logger)

	a.docs, err = documents.NewService(documents.Deps{
		DocumentsRoot: cfg.Storage.DocumentsRoot,
		Ledger:        a.ledger,
		Resolver:      resolver.NewFileResolver(cfg.Storage.DocumentsRoot, logger),
		Index:         index,
		Events:        sink,
		Telemetry:     telemetry.NewSink(a.telemetry.Meter("github.com/fyrsmithlabs/docledger"), logger),
	}, logger, documents.WithPolicy(policyFromConfig(cfg)))
	if err != nil {
		return nil, err
	}

	logger.Info("dependencies initialized",
		zap.String("documents_root", cfg.Storage.DocumentsRoot),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.Bool("events", a.natsConn != nil),
		zap.Bool("redaction", redactor != nil),
		zap.Bool("telemetry", a.telemetry.IsEnabled()))
	return a, nil
}

// policyFromConfig maps the ingestion and relocation sections onto a Policy.
func policyFromConfig(cfg *config.Config) documents.Policy {
	return documents.Policy{
		Ingestion:      documents.Schedule(cfg.Ingestion.Schedule),
		Removal:        documents.Sequential,
		Relocation:     documents.Schedule(cfg.Relocation.Schedule),
		OnMoveFault:    documents.FaultPolicy(cfg.Relocation.OnFault),
		DedupeDocpaths: cfg.Ingestion.DedupeDocpaths,
	}
}

// Close releases resources in reverse order of initialization.
func (a *app) Close(ctx context.Context) {
	var errs []error
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("draining NATS: %w", err))
		}
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.ledger != nil {
		errs = append(errs, a.ledger.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("errors during shutdown", zap.Error(err))
	}
	_ = a.logger.Sync()
}
