package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContextAddsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := ContextWithRun(context.Background(), "run-1")
	ctx = ContextWithStage(ctx, "fit")
	ctx = ContextWithFold(ctx, 3)

	FromContext(ctx, base).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "run-1", fields["run_id"])
		assert.Equal(t, "fit", fields["stage"])
		assert.Equal(t, int64(3), fields["fold"])
	}
}

func TestFromContextWithoutValues(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	FromContext(context.Background(), zap.New(core)).Info("plain")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Empty(t, entries[0].ContextMap())
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := newLogger(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestGetNeverNil(t *testing.T) {
	assert.NotNil(t, Get())
}
