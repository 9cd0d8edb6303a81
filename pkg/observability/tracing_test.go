package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/ajitpratap0/ctrflow/pkg/config"
	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestDisabledTracingIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := StartSpan(context.Background(), "fit")
	span.SetAttribute("records", 10)
	span.Fail(nil)
	span.End()
}

func TestSpansAreExported(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	var out bytes.Buffer
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{
		Enabled:     true,
		ServiceName: "ctrflow-test",
		SampleRate:  1,
	}, &out)
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "cv")
	span.SetAttribute("folds", 5)
	span.SetAttribute("dataset", "train.sparse.jsonl")
	_, child := StartSpan(ctx, "cv.fold")
	child.Fail(errors.New(errors.ErrorTypeData, "malformed line"))
	child.End()
	span.End()

	require.NoError(t, shutdown(context.Background()))

	exported := out.String()
	assert.Contains(t, exported, `"Name":"cv"`)
	assert.Contains(t, exported, `"Name":"cv.fold"`)
	assert.Contains(t, exported, "malformed line")
	assert.Contains(t, exported, "ctrflow-test")
}
