package logging

import (
	"bytes"
	"testing"

	"github.com/fyrsmithlabs/docledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newRedactedLogger(t *testing.T, buf *bytes.Buffer) *zap.Logger {
	t.Helper()
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc, err := NewRedactingEncoder(base, NewDefaultConfig().Redaction)
	require.NoError(t, err)
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(buf), zapcore.DebugLevel))
}

func TestRedactingEncoder_SensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	zl := newRedactedLogger(t, &buf)

	zl.Info("connecting", zap.String("Token", "abc123"), zap.String("host", "localhost"))

	out := buf.String()
	assert.NotContains(t, out, "abc123")
	assert.Contains(t, out, `"Token":"[REDACTED]"`)
	assert.Contains(t, out, `"host":"localhost"`)
}

func TestRedactingEncoder_ValuePatterns(t *testing.T) {
	var buf bytes.Buffer
	zl := newRedactedLogger(t, &buf)

	zl.Info("request", zap.String("header", "Bearer eyJhbGciOi"))

	assert.NotContains(t, buf.String(), "eyJhbGciOi")
	assert.Contains(t, buf.String(), "[REDACTED:pattern]")
}

func TestRedactingEncoder_WithFields(t *testing.T) {
	var buf bytes.Buffer
	zl := newRedactedLogger(t, &buf).With(zap.String("password", "hunter2"))

	zl.Info("login")

	assert.NotContains(t, buf.String(), "hunter2")
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	var buf bytes.Buffer
	enc, err := NewRedactingEncoder(base, RedactionConfig{Enabled: false})
	require.NoError(t, err)
	zl := zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.DebugLevel))

	zl.Info("plain", zap.String("token", "visible"))

	assert.Contains(t, buf.String(), "visible")
}

func TestSecretField(t *testing.T) {
	f := Secret("embeddings_key", config.Secret("sk-12345"))
	assert.Equal(t, "[REDACTED:8]", f.String)
}
