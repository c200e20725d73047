package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, "sequential", cfg.Ingestion.Schedule)
	assert.Equal(t, "concurrent", cfg.Relocation.Schedule)
	assert.Equal(t, "fail_batch", cfg.Relocation.OnFault)
	assert.Equal(t, "docledger.events", cfg.Events.SubjectPrefix)
	assert.NotEmpty(t, cfg.Storage.DocumentsRoot)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce.Duration())
	assert.Equal(t, []string{".docledgerignore"}, cfg.Watch.IgnoreFiles)
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8088
  shutdown_timeout: 3s
storage:
  documents_root: /srv/docs
  ledger_path: /srv/ledger.db
vectorstore:
  provider: qdrant
  qdrant_host: qdrant.internal
embeddings:
  api_key: sk-test
relocation:
  on_fault: report_partial
`, 0o600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "/srv/docs", cfg.Storage.DocumentsRoot)
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.QdrantHost)
	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey.Value())
	assert.Equal(t, "report_partial", cfg.Relocation.OnFault)
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8088\n", 0o600)
	t.Setenv("DOCLEDGER_SERVER_PORT", "9191")
	t.Setenv("DOCLEDGER_STORAGE_DOCUMENTS_ROOT", "/data/docs")
	t.Setenv("DOCLEDGER_INGESTION_DEDUPE_DOCPATHS", "true")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "/data/docs", cfg.Storage.DocumentsRoot)
	assert.True(t, cfg.Ingestion.DedupeDocpaths)
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [port", 0o600)

	_, err := LoadWithFile(path)
	assert.Error(t, err)
}

func TestLoadWithFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"bad provider", "vectorstore:\n  provider: pinecone\n"},
		{"bad schedule", "ingestion:\n  schedule: parallel\n"},
		{"bad fault policy", "relocation:\n  on_fault: ignore\n"},
		{"overlap too large", "ingestion:\n  chunk_size: 100\n  chunk_overlap: 100\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithFile(writeConfig(t, tt.yaml, 0o600))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	path := writeConfig(t, "server:\n  port: 8088\n", 0o666)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.port", envKey("DOCLEDGER_SERVER_PORT"))
	assert.Equal(t, "vectorstore.qdrant_host", envKey("DOCLEDGER_VECTORSTORE_QDRANT_HOST"))
	assert.Equal(t, "debug", envKey("DOCLEDGER_DEBUG"))
}

func TestSecret_NeverPrinted(t *testing.T) {
	s := Secret("hunter2")
	assert.Equal(t, "[REDACTED]", s.String())

	b, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"[REDACTED]"`, string(b))
	assert.True(t, s.IsSet())
	assert.Equal(t, "", Secret("").String())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("250ms")))
	assert.Equal(t, 250*time.Millisecond, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
