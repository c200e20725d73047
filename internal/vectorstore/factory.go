package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/docledger/internal/config"
	"go.uber.org/zap"
)

// NewStore creates the Store selected by cfg.VectorStore.Provider:
//   - "chromem" (default): embedded, no external service
//   - "qdrant": external Qdrant server over gRPC
func NewStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	vs := cfg.VectorStore
	switch vs.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       vs.ChromemPath,
			Compress:   vs.ChromemCompress,
			VectorSize: vs.VectorSize,
		}, logger)
	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:       vs.QdrantHost,
			Port:       vs.QdrantPort,
			UseTLS:     vs.QdrantUseTLS,
			VectorSize: uint64(vs.VectorSize),
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: chromem, qdrant)",
			ErrInvalidConfig, vs.Provider)
	}
}
