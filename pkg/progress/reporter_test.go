package progress

import (
	"context"
	"testing"

	"github.com/ajitpratap0/ctrflow/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReporterLogsEveryN(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := logger.ContextWithStage(context.Background(), "learn")
	r := New(logger.FromContext(ctx, zap.New(core)), "learn", 3)

	for i := 0; i < 7; i++ {
		r.Tick(zap.Float64("logloss", 0.5))
	}
	assert.Equal(t, int64(7), r.Processed())

	updates := logs.FilterMessage("progress update").All()
	require.Len(t, updates, 2)
	fields := updates[1].ContextMap()
	assert.Equal(t, int64(6), fields["processed"])
	assert.Equal(t, "learn", fields["stage"])
	assert.Equal(t, 0.5, fields["logloss"])

	s := r.Finish()
	assert.Equal(t, int64(7), s.Processed)
	require.Equal(t, 1, logs.FilterMessage("stage completed").Len())

	for _, entry := range logs.All() {
		assert.Equal(t, 1, stageFields(entry), entry.Message)
	}
}

func stageFields(entry observer.LoggedEntry) int {
	n := 0
	for _, f := range entry.Context {
		if f.Key == "stage" {
			n++
		}
	}
	return n
}

func TestReporterDisabledPeriod(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := New(zap.New(core), "score", 0)
	for i := 0; i < 5; i++ {
		r.Tick()
	}
	assert.Zero(t, logs.FilterMessage("progress update").Len())
	assert.Equal(t, int64(5), r.Snapshot().Processed)
}

func TestReporterNilLogger(t *testing.T) {
	r := New(nil, "transform", 1)
	r.Tick()
	r.Finish()
	assert.Equal(t, int64(1), r.Processed())
}
