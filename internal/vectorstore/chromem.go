package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("docledger.vectorstore.chromem")

// errPrecomputedOnly is returned if chromem ever asks us to embed text.
var errPrecomputedOnly = errors.New("chromem store accepts precomputed embeddings only")

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. A leading ~ is expanded.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// VectorSize is the expected embedding dimension.
	// Default: 384 (bge-small-en-v1.5)
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/docledger/vectors"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go, persisted to gob files.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger
}

var _ Store = (*ChromemStore)(nil)

// NewChromemStore opens (or creates) the chromem database at config.Path.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	path, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", path),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
	)

	return &ChromemStore{db: db, config: config, logger: logger}, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc must be passed to every collection lookup, otherwise
// chromem-go falls back to its default OpenAI embedder for persisted
// collections.
func embeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, errPrecomputedOnly
}

// Upsert writes points into namespace.
func (s *ChromemStore) Upsert(ctx context.Context, namespace string, points []Point) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	start := time.Now()
	defer func() { observe("chromem", "upsert", start, err) }()

	span.SetAttributes(
		attribute.String("namespace", namespace),
		attribute.Int("point_count", len(points)),
	)

	if len(points) == 0 {
		return ErrEmptyPoints
	}
	if err = ValidateNamespace(namespace); err != nil {
		return err
	}
	if err = checkDimensions(points, s.config.VectorSize); err != nil {
		return err
	}

	collection, err := s.db.GetOrCreateCollection(namespace, nil, embeddingFunc)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("getting/creating collection %s: %w", namespace, err)
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		meta := make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			meta[k] = v
		}
		docs[i] = chromem.Document{
			ID:        p.ID,
			Content:   p.Content,
			Metadata:  meta,
			Embedding: p.Vector,
		}
	}

	// Embeddings are already present, so concurrency buys nothing.
	if err = collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	PointsWritten.WithLabelValues("chromem").Add(float64(len(points)))
	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("upserted points",
		zap.String("namespace", namespace),
		zap.Int("count", len(points)),
	)
	return nil
}

// DeleteByDocID removes every point tagged with docID.
func (s *ChromemStore) DeleteByDocID(ctx context.Context, namespace, docID string) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteByDocID")
	defer span.End()
	start := time.Now()
	defer func() { observe("chromem", "delete_by_doc", start, err) }()

	span.SetAttributes(
		attribute.String("namespace", namespace),
		attribute.String("doc_id", docID),
	)

	if docID == "" {
		return fmt.Errorf("doc id is required")
	}
	if err = ValidateNamespace(namespace); err != nil {
		return err
	}

	collection := s.db.GetCollection(namespace, embeddingFunc)
	if collection == nil {
		return nil
	}
	if err = collection.Delete(ctx, map[string]string{MetaDocID: docID}, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting points for %s: %w", docID, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteByIDs removes the points with the given ids.
func (s *ChromemStore) DeleteByIDs(ctx context.Context, namespace string, ids []string) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteByIDs")
	defer span.End()
	start := time.Now()
	defer func() { observe("chromem", "delete_by_ids", start, err) }()

	span.SetAttributes(
		attribute.String("namespace", namespace),
		attribute.Int("ids", len(ids)),
	)

	if len(ids) == 0 {
		return nil
	}
	if err = ValidateNamespace(namespace); err != nil {
		return err
	}
	collection := s.db.GetCollection(namespace, embeddingFunc)
	if collection == nil {
		return nil
	}
	if err = collection.Delete(ctx, nil, nil, ids...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting %d points: %w", len(ids), err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteNamespace drops namespace.
func (s *ChromemStore) DeleteNamespace(ctx context.Context, namespace string) (err error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.DeleteNamespace")
	defer span.End()
	start := time.Now()
	defer func() { observe("chromem", "delete_namespace", start, err) }()

	if err = ValidateNamespace(namespace); err != nil {
		return err
	}
	if err = s.db.DeleteCollection(namespace); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting collection %s: %w", namespace, err)
	}
	s.logger.Info("deleted namespace", zap.String("namespace", namespace))
	return nil
}

// NamespaceExists reports whether namespace exists.
func (s *ChromemStore) NamespaceExists(_ context.Context, namespace string) (bool, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return false, err
	}
	return s.db.GetCollection(namespace, embeddingFunc) != nil, nil
}

// Count returns the number of points in namespace.
func (s *ChromemStore) Count(_ context.Context, namespace string) (int, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return 0, err
	}
	collection := s.db.GetCollection(namespace, embeddingFunc)
	if collection == nil {
		return 0, ErrNamespaceNotFound
	}
	return collection.Count(), nil
}

// Close is a no-op; chromem-go persists on every write.
func (s *ChromemStore) Close() error {
	s.logger.Info("chromem store closed")
	return nil
}
