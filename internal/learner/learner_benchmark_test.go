package learner

import (
	"context"
	"fmt"
	"testing"

	"github.com/ajitpratap0/ctrflow/pkg/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func benchmarkExamples(n int) []models.Example {
	examples := make([]models.Example, n)
	for i := range examples {
		label := 0.0
		if i%7 == 3 {
			label = 1
		}
		examples[i] = models.Example{
			Target: models.Feature{Field: "is_click", Value: label},
			Features: []models.Feature{
				{Field: "ad_id", Value: float64(i % 97)},
				{Field: "user_id", Value: float64(i % 389)},
				{Field: "hour", Index: i % 24, Value: 1},
				{Field: "region_id", Index: i % 80, Value: 1},
				{Field: "price_percentile", Index: i % 19, Value: 1},
				{Field: "ad_ctr", Value: float64(i%13) / 100},
			},
		}
	}
	return examples
}

// BenchmarkFit benchmarks one learning pass with and without online features
func BenchmarkFit(b *testing.B) {
	examples := benchmarkExamples(20_000)

	for _, online := range []bool{false, true} {
		b.Run(fmt.Sprintf("online=%t", online), func(b *testing.B) {
			cfg := testConfig(online)
			cfg.HistoryCapacity = 100_000

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				e, err := New(cfg, WithLogger(zap.NewNop()))
				require.NoError(b, err)
				require.NoError(b, e.Fit(context.Background(), stream(examples...)))
			}

			b.ReportMetric(float64(len(examples)*b.N)/b.Elapsed().Seconds(), "records/sec")
		})
	}
}
