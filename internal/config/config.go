// Package config provides configuration loading for docledger.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates a configuration value failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete docledger configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Storage       StorageConfig       `koanf:"storage"`
	VectorStore   VectorStoreConfig   `koanf:"vectorstore"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	Ingestion     IngestionConfig     `koanf:"ingestion"`
	Relocation    RelocationConfig    `koanf:"relocation"`
	Events        EventsConfig        `koanf:"events"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
	Watch         WatchConfig         `koanf:"watch"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StorageConfig locates the document tree and the ledger database.
type StorageConfig struct {
	// DocumentsRoot is the directory under which every actor's scoped tree lives.
	DocumentsRoot string `koanf:"documents_root"`
	// LedgerPath is the SQLite database file.
	LedgerPath string `koanf:"ledger_path"`
}

// VectorStoreConfig selects and configures the vector backend.
type VectorStoreConfig struct {
	Provider        string `koanf:"provider"` // chromem | qdrant
	ChromemPath     string `koanf:"chromem_path"`
	ChromemCompress bool   `koanf:"chromem_compress"`
	QdrantHost      string `koanf:"qdrant_host"`
	QdrantPort      int    `koanf:"qdrant_port"`
	QdrantUseTLS    bool   `koanf:"qdrant_use_tls"`
	VectorSize      int    `koanf:"vector_size"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	Provider string `koanf:"provider"` // openai | fastembed
	BaseURL  string `koanf:"base_url"`
	Model    string `koanf:"model"`
	APIKey   Secret `koanf:"api_key"`
	CacheDir string `koanf:"cache_dir"`
}

// IngestionConfig tunes the ingestion pipeline.
type IngestionConfig struct {
	Schedule       string  `koanf:"schedule"` // sequential | concurrent
	EmbedRateLimit float64 `koanf:"embed_rate_limit"`
	EmbedBurst     int     `koanf:"embed_burst"`
	ChunkSize      int     `koanf:"chunk_size"`
	ChunkOverlap   int     `koanf:"chunk_overlap"`
	RedactSecrets  bool    `koanf:"redact_secrets"`
	AllowlistPath  string  `koanf:"allowlist_path"`
	DedupeDocpaths bool    `koanf:"dedupe_docpaths"`
}

// RelocationConfig tunes file moves.
type RelocationConfig struct {
	Schedule string `koanf:"schedule"` // sequential | concurrent
	OnFault  string `koanf:"on_fault"` // fail_batch | report_partial
}

// EventsConfig configures the NATS event sink.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// ObservabilityConfig configures OpenTelemetry export.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	OTLPInsecure    bool    `koanf:"otlp_insecure"`
	ServiceName     string  `koanf:"service_name"`
	SampleRate      float64 `koanf:"sample_rate"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// WatchConfig configures the watched-document monitor.
type WatchConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Debounce Duration `koanf:"debounce"`
	// IgnoreFiles are gitignore-style files read from the documents root.
	IgnoreFiles []string `koanf:"ignore_files"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config, home string) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3001
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	dataDir := home + "/.local/share/docledger"
	if cfg.Storage.DocumentsRoot == "" {
		cfg.Storage.DocumentsRoot = dataDir + "/documents"
	}
	if cfg.Storage.LedgerPath == "" {
		cfg.Storage.LedgerPath = dataDir + "/ledger.db"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.ChromemPath == "" {
		cfg.VectorStore.ChromemPath = dataDir + "/vectors"
	}
	if cfg.VectorStore.QdrantHost == "" {
		cfg.VectorStore.QdrantHost = "localhost"
	}
	if cfg.VectorStore.QdrantPort == 0 {
		cfg.VectorStore.QdrantPort = 6334
	}
	if cfg.VectorStore.VectorSize == 0 {
		cfg.VectorStore.VectorSize = 384
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "openai"
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080/v1"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	if cfg.Ingestion.Schedule == "" {
		cfg.Ingestion.Schedule = "sequential"
	}
	if cfg.Ingestion.ChunkSize == 0 {
		cfg.Ingestion.ChunkSize = 1000
	}
	if cfg.Ingestion.EmbedBurst == 0 {
		cfg.Ingestion.EmbedBurst = 1
	}

	if cfg.Relocation.Schedule == "" {
		cfg.Relocation.Schedule = "concurrent"
	}
	if cfg.Relocation.OnFault == "" {
		cfg.Relocation.OnFault = "fail_batch"
	}

	if cfg.Events.NATSURL == "" {
		cfg.Events.NATSURL = "nats://127.0.0.1:4222"
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "docledger.events"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "docledger"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = Duration(500 * time.Millisecond)
	}
	if len(cfg.Watch.IgnoreFiles) == 0 {
		cfg.Watch.IgnoreFiles = []string{".docledgerignore"}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be 1-65535, got %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Storage.DocumentsRoot == "" {
		return fmt.Errorf("%w: storage.documents_root is required", ErrInvalidConfig)
	}
	if c.Storage.LedgerPath == "" {
		return fmt.Errorf("%w: storage.ledger_path is required", ErrInvalidConfig)
	}

	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("%w: vectorstore.provider must be chromem or qdrant, got %q", ErrInvalidConfig, c.VectorStore.Provider)
	}
	if c.VectorStore.VectorSize <= 0 {
		return fmt.Errorf("%w: vectorstore.vector_size must be positive", ErrInvalidConfig)
	}

	switch c.Embeddings.Provider {
	case "openai", "fastembed":
	default:
		return fmt.Errorf("%w: embeddings.provider must be openai or fastembed, got %q", ErrInvalidConfig, c.Embeddings.Provider)
	}

	if err := validSchedule("ingestion.schedule", c.Ingestion.Schedule); err != nil {
		return err
	}
	if err := validSchedule("relocation.schedule", c.Relocation.Schedule); err != nil {
		return err
	}
	if c.Ingestion.EmbedRateLimit < 0 {
		return fmt.Errorf("%w: ingestion.embed_rate_limit cannot be negative", ErrInvalidConfig)
	}
	if c.Ingestion.ChunkOverlap < 0 || c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf("%w: ingestion.chunk_overlap must be in [0, chunk_size)", ErrInvalidConfig)
	}

	switch c.Relocation.OnFault {
	case "fail_batch", "report_partial":
	default:
		return fmt.Errorf("%w: relocation.on_fault must be fail_batch or report_partial, got %q", ErrInvalidConfig, c.Relocation.OnFault)
	}

	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return fmt.Errorf("%w: observability.sample_rate must be in [0, 1]", ErrInvalidConfig)
	}
	return nil
}

func validSchedule(key, v string) error {
	if v != "sequential" && v != "concurrent" {
		return fmt.Errorf("%w: %s must be sequential or concurrent, got %q", ErrInvalidConfig, key, v)
	}
	return nil
}
