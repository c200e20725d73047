package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("docledger.vectorstore.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334), not the REST port (6333).
	Port int

	// VectorSize is the dimensionality of stored vectors.
	VectorSize uint64

	// Distance is the similarity metric. Default: Cosine.
	Distance qdrant.Distance

	UseTLS bool

	// MaxRetries bounds retries of transient failures. Default: 3.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per retry. Default: 1s.
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size. Default: 50MB.
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of failures before opening the
	// circuit. Default: 5.
	CircuitBreakerThreshold int
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
}

// IsTransientError reports whether err is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store over Qdrant's native gRPC client.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger

	// namespaces caches namespaces known to exist.
	namespaces sync.Map

	breaker struct {
		mu       sync.Mutex
		failures int
		lastFail time.Time
	}
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore connects to Qdrant and verifies the connection.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext, TLS disabled")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &QdrantStore{client: client, config: config, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Uint64("vector_size", config.VectorSize),
	)
	return s, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// retry runs op with exponential backoff on transient errors.
func (s *QdrantStore) retry(ctx context.Context, name string, op func() error) error {
	backoff := s.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		if s.circuitOpen() {
			return fmt.Errorf("%s: circuit breaker open", name)
		}
		err := op()
		if err == nil {
			s.resetBreaker()
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", name, err)
		}
		s.recordFailure()
		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, s.config.MaxRetries, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (s *QdrantStore) recordFailure() {
	s.breaker.mu.Lock()
	defer s.breaker.mu.Unlock()
	s.breaker.failures++
	s.breaker.lastFail = time.Now()
}

func (s *QdrantStore) resetBreaker() {
	s.breaker.mu.Lock()
	defer s.breaker.mu.Unlock()
	s.breaker.failures = 0
}

func (s *QdrantStore) circuitOpen() bool {
	s.breaker.mu.Lock()
	defer s.breaker.mu.Unlock()
	if s.breaker.failures < s.config.CircuitBreakerThreshold {
		return false
	}
	// Half-open after 30s.
	if time.Since(s.breaker.lastFail) > 30*time.Second {
		s.breaker.failures = 0
		return false
	}
	return true
}

// Upsert writes points, creating the namespace on first use.
func (s *QdrantStore) Upsert(ctx context.Context, namespace string, points []Point) (err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	start := time.Now()
	defer func() { observe("qdrant", "upsert", start, err) }()

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
	if err = checkDimensions(points, int(s.config.VectorSize)); err != nil {
		return err
	}
	if err = s.ensureNamespace(ctx, namespace); err != nil {
		span.RecordError(err)
		return err
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: pointPayload(p),
		}
	}

	err = s.retry(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: namespace,
			Wait:           qdrant.PtrOf(true),
			Points:         structs,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points to %s: %w", namespace, err)
	}

	PointsWritten.WithLabelValues("qdrant").Add(float64(len(points)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

func pointPayload(p Point) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(p.Metadata)+1)
	for k, v := range p.Metadata {
		payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	}
	payload[MetaContent] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: p.Content}}
	return payload
}

func docIDFilter(docID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: MetaDocID,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: docID},
					},
				},
			},
		}},
	}
}

// DeleteByDocID removes every point whose payload doc_id equals docID.
func (s *QdrantStore) DeleteByDocID(ctx context.Context, namespace, docID string) (err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteByDocID")
	defer span.End()
	start := time.Now()
	defer func() { observe("qdrant", "delete_by_doc", start, err) }()

	span.SetAttributes(
		attribute.String("namespace", namespace),
		attribute.String("doc_id", docID),
	)

	if docID == "" {
		return fmt.Errorf("doc id is required")
	}
	exists, err := s.NamespaceExists(ctx, namespace)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	err = s.retry(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: namespace,
			Wait:           qdrant.PtrOf(true),
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: docIDFilter(docID)},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting points for %s: %w", docID, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteByIDs removes the points with the given ids.
func (s *QdrantStore) DeleteByIDs(ctx context.Context, namespace string, ids []string) (err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteByIDs")
	defer span.End()
	start := time.Now()
	defer func() { observe("qdrant", "delete_by_ids", start, err) }()

	span.SetAttributes(
		attribute.String("namespace", namespace),
		attribute.Int("ids", len(ids)),
	)

	if len(ids) == 0 {
		return nil
	}
	exists, err := s.NamespaceExists(ctx, namespace)
	if err != nil || !exists {
		return err
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}
	err = s.retry(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: namespace,
			Wait:           qdrant.PtrOf(true),
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Points{
					Points: &qdrant.PointsIdsList{Ids: pointIDs},
				},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting %d points: %w", len(ids), err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteNamespace drops namespace.
func (s *QdrantStore) DeleteNamespace(ctx context.Context, namespace string) (err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteNamespace")
	defer span.End()
	start := time.Now()
	defer func() { observe("qdrant", "delete_namespace", start, err) }()

	if err = ValidateNamespace(namespace); err != nil {
		return err
	}
	err = s.retry(ctx, "delete_collection", func() error {
		return s.client.DeleteCollection(ctx, namespace)
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting collection %s: %w", namespace, err)
	}
	s.namespaces.Delete(namespace)
	return nil
}

// NamespaceExists reports whether the collection exists.
func (s *QdrantStore) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return false, err
	}
	if _, ok := s.namespaces.Load(namespace); ok {
		return true, nil
	}

	var exists bool
	err := s.retry(ctx, "collection_exists", func() error {
		info, err := s.client.GetCollectionInfo(ctx, namespace)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = info != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("checking collection %s: %w", namespace, err)
	}
	if exists {
		s.namespaces.Store(namespace, true)
	}
	return exists, nil
}

func (s *QdrantStore) ensureNamespace(ctx context.Context, namespace string) error {
	exists, err := s.NamespaceExists(ctx, namespace)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = s.retry(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: namespace,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.config.VectorSize,
				Distance: s.config.Distance,
			}),
		})
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", namespace, err)
	}
	s.namespaces.Store(namespace, true)
	s.logger.Info("created namespace", zap.String("namespace", namespace))
	return nil
}

// Count returns the exact number of points in namespace.
func (s *QdrantStore) Count(ctx context.Context, namespace string) (int, error) {
	exists, err := s.NamespaceExists(ctx, namespace)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNamespaceNotFound
	}

	var n uint64
	err = s.retry(ctx, "count", func() error {
		var err error
		n, err = s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: namespace,
			Exact:          qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		return 0, fmt.Errorf("counting points in %s: %w", namespace, err)
	}
	return int(n), nil
}
