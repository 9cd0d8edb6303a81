package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerServesCollectors(t *testing.T) {
	RecordsProcessed.WithLabelValues("metrics_test").Add(3)
	FoldLogLoss.WithLabelValues(Fold(2)).Set(0.41)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `ctrflow_records_processed_total{stage="metrics_test"} 3`)
	assert.Contains(t, string(body), `ctrflow_fold_logloss{fold="2"} 0.41`)
}

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker("tracker_test")
	tracker.Increment(500)
	time.Sleep(10 * time.Millisecond)

	rate := tracker.GetAndReset()
	assert.Greater(t, rate, 0.0)
	assert.LessOrEqual(t, rate, 500/0.01)
	assert.Equal(t, rate, testutil.ToFloat64(Throughput.WithLabelValues("tracker_test")))

	assert.Zero(t, tracker.GetAndReset(), "window restarts empty")
}

func TestTimer(t *testing.T) {
	timer := NewTimer("step")
	assert.Equal(t, "step", timer.Name())
	first := timer.Stop()
	assert.GreaterOrEqual(t, timer.Stop(), first)
}
