// Package vectorindex writes a document's embeddings into a workspace
// namespace and removes them again by docId.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/docledger/internal/embeddings"
	"github.com/fyrsmithlabs/docledger/internal/sanitize"
	"github.com/fyrsmithlabs/docledger/internal/secrets"
	"github.com/fyrsmithlabs/docledger/internal/vectorstore"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrVectorization indicates a document could not be embedded or stored.
var ErrVectorization = errors.New("vectorization failed")

// Metadata keys written next to MetaDocID on every chunk.
const (
	MetaTitle      = "title"
	MetaSourceType = "source_type"
	MetaLocation   = "location"
	MetaChunkIndex = "chunk_index"
)

// Entry is the document to vectorize.
type Entry struct {
	DocID      string
	Title      string
	Body       string
	SourceType string
}

// Recorder persists the vector ids created for a docId and lists them back
// for removal.
type Recorder interface {
	AddVectors(ctx context.Context, docID string, vectorIDs []string) error
	VectorIDs(ctx context.Context, docID string) []string
}

// Options tunes a Client.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	// RateLimit bounds embedding calls per second. Zero disables limiting.
	RateLimit float64
	Burst     int
	// Redactor scrubs secrets from chunks before they are embedded. Optional.
	Redactor *secrets.Redactor
	// Recorder is told about every stored chunk. Optional.
	Recorder Recorder
}

// Client embeds documents and stores them through a vectorstore.Store.
type Client struct {
	store    vectorstore.Store
	embedder embeddings.Embedder
	splitter textsplitter.TextSplitter
	limiter  *rate.Limiter
	redactor *secrets.Redactor
	recorder Recorder
	logger   *zap.Logger
}

// New returns a Client.
func New(store vectorstore.Store, embedder embeddings.Embedder, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = 0
	}

	c := &Client{
		store:    store,
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(opts.ChunkSize),
			textsplitter.WithChunkOverlap(opts.ChunkOverlap),
		),
		redactor: opts.Redactor,
		recorder: opts.Recorder,
		logger:   logger.Named("vectorindex"),
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// Add splits entry.Body into chunks, embeds them and stores them in the
// namespace derived from workspace. Every failure wraps ErrVectorization.
func (c *Client) Add(ctx context.Context, workspace string, entry Entry, location string) (err error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "vectorindex.Add")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	namespace := sanitize.NamespaceKey(workspace)
	span.SetAttributes(
		attribute.String("namespace", namespace),
		attribute.String("doc_id", entry.DocID),
	)

	if entry.DocID == "" {
		return fmt.Errorf("%w: docId is required", ErrVectorization)
	}
	if strings.TrimSpace(entry.Body) == "" {
		return fmt.Errorf("%w: %s has no text content", ErrVectorization, location)
	}

	chunks, err := c.splitter.SplitText(entry.Body)
	if err != nil {
		return fmt.Errorf("%w: splitting %s: %v", ErrVectorization, location, err)
	}
	chunks = nonEmpty(chunks)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: %s produced no chunks", ErrVectorization, location)
	}
	if c.redactor != nil {
		for i, chunk := range chunks {
			res, rerr := c.redactor.Redact(chunk)
			if rerr != nil {
				return fmt.Errorf("%w: redacting %s: %v", ErrVectorization, location, rerr)
			}
			if res.Summary.TotalSecrets > 0 {
				c.logger.Info("redacted secrets before embedding",
					zap.String("location", location),
					zap.Int("chunk", i),
					zap.Int("secrets", res.Summary.TotalSecrets))
			}
			chunks[i] = res.Content
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %v", ErrVectorization, err)
		}
	}
	vectors, err := c.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVectorization, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: embedder returned %d vectors for %d chunks", ErrVectorization, len(vectors), len(chunks))
	}

	points := make([]vectorstore.Point, len(chunks))
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = uuid.NewString()
		points[i] = vectorstore.Point{
			ID:      ids[i],
			Vector:  vectors[i],
			Content: chunk,
			Metadata: map[string]string{
				vectorstore.MetaDocID: entry.DocID,
				MetaTitle:             entry.Title,
				MetaSourceType:        entry.SourceType,
				MetaLocation:          location,
				MetaChunkIndex:        fmt.Sprint(i),
			},
		}
	}
	if err := c.store.Upsert(ctx, namespace, points); err != nil {
		return fmt.Errorf("%w: %v", ErrVectorization, err)
	}

	if c.recorder != nil {
		if rerr := c.recorder.AddVectors(ctx, entry.DocID, ids); rerr != nil {
			// The vectors are stored and removable by docId; only the
			// association rows are missing.
			c.logger.Warn("recording vector ids failed",
				zap.String("doc_id", entry.DocID),
				zap.Error(rerr))
		}
	}

	c.logger.Debug("document vectorized",
		zap.String("namespace", namespace),
		zap.String("doc_id", entry.DocID),
		zap.Int("chunks", len(chunks)))
	return nil
}

// Remove deletes docID's vectors from workspace's namespace. Vector ids
// known to the recorder are deleted by id; without them every point tagged
// with docID is deleted. Removing an unknown docId succeeds.
func (c *Client) Remove(ctx context.Context, workspace, docID string) error {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "vectorindex.Remove")
	defer span.End()

	namespace := sanitize.NamespaceKey(workspace)
	var ids []string
	if c.recorder != nil {
		ids = c.recorder.VectorIDs(ctx, docID)
	}
	span.SetAttributes(
		attribute.String("namespace", namespace),
		attribute.String("doc_id", docID),
		attribute.Int("recorded_vectors", len(ids)),
	)

	var err error
	if len(ids) > 0 {
		err = c.store.DeleteByIDs(ctx, namespace, ids)
	} else {
		err = c.store.DeleteByDocID(ctx, namespace, docID)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("removing %s from %s: %w", docID, namespace, err)
	}
	return nil
}

const instrumentationName = "github.com/fyrsmithlabs/docledger/internal/vectorindex"

func nonEmpty(chunks []string) []string {
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}
