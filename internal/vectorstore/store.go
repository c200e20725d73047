// Package vectorstore stores precomputed embeddings under per-workspace
// namespaces.
//
// Vectors are computed by the caller; stores never embed text themselves.
// Every point carries the docId it belongs to in its metadata so that all
// vectors of a document can be removed together.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrNamespaceNotFound is returned when a namespace does not exist.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyPoints indicates an upsert with nothing to store.
	ErrEmptyPoints = errors.New("empty or nil points")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrInvalidNamespace indicates namespace name validation failure.
	ErrInvalidNamespace = errors.New("invalid namespace name")

	// ErrDimensionMismatch is returned when a vector's size differs from the
	// store's configured size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Metadata keys written on every point.
const (
	MetaDocID   = "doc_id"
	MetaContent = "content"
)

// Point is one stored vector.
type Point struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]string
}

// DocID returns the docId the point belongs to.
func (p Point) DocID() string {
	return p.Metadata[MetaDocID]
}

// Store persists points under namespaces.
//
// Implementations:
//   - ChromemStore: embedded chromem-go (default)
//   - QdrantStore: external Qdrant over gRPC
type Store interface {
	// Upsert writes points into namespace, creating it on first use.
	Upsert(ctx context.Context, namespace string, points []Point) error

	// DeleteByDocID removes every point in namespace tagged with docID.
	// A missing namespace is not an error.
	DeleteByDocID(ctx context.Context, namespace, docID string) error

	// DeleteByIDs removes the points with the given ids. Unknown ids and a
	// missing namespace are not errors.
	DeleteByIDs(ctx context.Context, namespace string, ids []string) error

	// DeleteNamespace drops a namespace and all its points.
	DeleteNamespace(ctx context.Context, namespace string) error

	// NamespaceExists reports whether namespace has been created.
	NamespaceExists(ctx context.Context, namespace string) (bool, error)

	// Count returns the number of points in namespace.
	Count(ctx context.Context, namespace string) (int, error)

	Close() error
}

var namespacePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateNamespace rejects names outside ^[a-z0-9_]{1,64}$.
func ValidateNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("%w: namespace cannot be empty", ErrInvalidNamespace)
	}
	if !namespacePattern.MatchString(name) {
		return fmt.Errorf("%w: namespace must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidNamespace, name)
	}
	return nil
}

func checkDimensions(points []Point, size int) error {
	for _, p := range points {
		if len(p.Vector) != size {
			return fmt.Errorf("%w: point %s has %d dimensions, store expects %d",
				ErrDimensionMismatch, p.ID, len(p.Vector), size)
		}
	}
	return nil
}
