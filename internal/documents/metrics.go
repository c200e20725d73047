package documents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsEmbedded counts locations whose vectors were written.
	DocumentsEmbedded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docledger",
		Name:      "documents_embedded_total",
		Help:      "Total number of documents vectorized into a workspace",
	})

	// DocumentsFailed counts locations that failed to vectorize.
	DocumentsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docledger",
		Name:      "documents_failed_total",
		Help:      "Total number of documents that failed to vectorize",
	})

	// OrphanVectors counts documents whose vectors were written but whose
	// ledger row could not be.
	OrphanVectors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docledger",
		Name:      "documents_orphan_vectors_total",
		Help:      "Total number of vectorized documents without a ledger row",
	})

	// DocumentsRemoved counts ledger rows purged by removal.
	DocumentsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docledger",
		Name:      "documents_removed_total",
		Help:      "Total number of documents removed from a workspace",
	})

	// FilesMoved counts relocation outcomes.
	// Labels: result (moved, skipped, failed)
	FilesMoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docledger",
		Name:      "files_moved_total",
		Help:      "Total number of file relocation outcomes",
	}, []string{"result"})
)
