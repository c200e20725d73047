package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docledger/internal/documents"
)

func newTestMetrics(t *testing.T) (*Metrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := &Metrics{
		meter:  mp.Meter(instrumentationName),
		logger: zap.NewNop(),
	}
	m.init()
	return m, reader
}

func sumOf(t *testing.T, reader *metric.ManualReader, name string) (int64, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != name {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok, name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total, true
		}
	}
	return 0, false
}

func TestMetrics_RecordInvocation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordInvocation(ctx, "files_move", 100*time.Millisecond, nil)
	m.RecordInvocation(ctx, "files_move", 50*time.Millisecond, documents.ErrRelocationFailed)

	invocations, ok := sumOf(t, reader, "docledger.mcp.tool.invocations_total")
	require.True(t, ok)
	assert.Equal(t, int64(2), invocations)

	errs, ok := sumOf(t, reader, "docledger.mcp.tool.errors_total")
	require.True(t, ok)
	assert.Equal(t, int64(1), errs)
}

func TestMetrics_ActiveRequests(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.IncrementActive(ctx, "documents_add")
	m.IncrementActive(ctx, "documents_add")
	m.DecrementActive(ctx, "documents_add")

	active, ok := sumOf(t, reader, "docledger.mcp.tool.active_requests")
	require.True(t, ok)
	assert.Equal(t, int64(1), active)
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("%w: workspace is required", documents.ErrInvalidInput), "validation_error"},
		{fmt.Errorf("to: %w", documents.ErrPathTraversal), "containment_error"},
		{fmt.Errorf("%w: doc", documents.ErrNotFound), "not_found"},
		{documents.ErrCollision, "collision"},
		{documents.ErrRelocationFailed, "relocation_error"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeError(tt.err), fmt.Sprint(tt.err))
	}
}
