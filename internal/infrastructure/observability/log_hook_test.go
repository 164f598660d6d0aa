package observability

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

type memoryExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func TestLogHook_ForwardsEvents(t *testing.T) {
	exp := &memoryExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	defer provider.Shutdown(context.Background())

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Hook(NewLogHook(provider.Logger("test")))

	logger.Warn().Str("hpid", "A1").Msg("unknown facility dropped")
	logger.Info().Msg("cycle complete")

	require.Len(t, exp.records, 2)
	assert.Equal(t, "unknown facility dropped", exp.records[0].Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, exp.records[0].Severity())
	assert.Equal(t, otellog.SeverityInfo, exp.records[1].Severity())
	assert.Contains(t, buf.String(), "cycle complete")
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, otellog.SeverityError, severityOf(zerolog.ErrorLevel))
	assert.Equal(t, otellog.SeverityFatal, severityOf(zerolog.PanicLevel))
}
