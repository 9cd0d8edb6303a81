package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajitpratap0/ctrflow/pkg/dataset"
	"github.com/ajitpratap0/ctrflow/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// IntegrationTestSuite provides a context and a scratch directory to
// suites that run whole stages against files.
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "ctrflow-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// Path returns name inside the suite's scratch directory
func (s *IntegrationTestSuite) Path(name string) string {
	return filepath.Join(s.tempDir, name)
}

// CreateTempFile creates a file with content in the scratch directory
func (s *IntegrationTestSuite) CreateTempFile(name string, content []byte) string {
	path := s.Path(name)
	require.NoError(s.T(), os.WriteFile(path, content, 0o644))
	return path
}

// IntegrationTest skips the calling test in short mode
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// WriteRaw writes records to path, compressed according to its extension.
func WriteRaw(t testing.TB, path string, records []models.RawRecord) string {
	t.Helper()
	w, err := dataset.CreateRaw(path)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, w.Append(r))
	}
	require.NoError(t, w.Close())
	return path
}

// WriteSparse writes examples to path, compressed according to its extension.
func WriteSparse(t testing.TB, path string, examples []models.Example) string {
	t.Helper()
	w, err := dataset.CreateSparse(path)
	require.NoError(t, err)
	for _, ex := range examples {
		require.NoError(t, w.Append(ex))
	}
	require.NoError(t, w.Close())
	return path
}

// ClickLog returns n deterministic raw training records shaped like the
// search-stream export: labels, identifiers, impression counters, category
// ids, a price and an ad parameter blob. Every fourth record is a click.
func ClickLog(n int) []models.RawRecord {
	records := make([]models.RawRecord, n)
	for i := 0; i < n; i++ {
		label := int64(0)
		if i%4 == 3 {
			label = 1
		}
		ad := int64(100 + i%7)
		user := int64(1000 + i%5)
		var price interface{} = float64(10 + (i*37)%250)
		if i%11 == 5 {
			price = nil
		}
		records[i] = models.RawRecord{
			Head: models.Field{Name: "is_click", Value: label},
			Fields: models.Row{
				{Name: "ad_id", Value: ad},
				{Name: "user_id", Value: user},
				{Name: "hour", Value: int64(i % 24)},
				{Name: "region_id", Value: int64(i % 3)},
				{Name: "price", Value: price},
				{Name: "ad_n_impressions", Value: int64(i % 6)},
				{Name: "ad_n_clicks", Value: int64(i % 2)},
				{Name: "user_n_impressions", Value: int64(i % 4)},
				{Name: "user_n_clicks", Value: int64(0)},
				{Name: "search_cat_id", Value: int64(1 + i%3)},
				{Name: "ad_cat_id", Value: int64(1 + i%4)},
				{Name: "ad_params", Value: map[string]interface{}{
					fmt.Sprint(10 + i%3): "a",
					fmt.Sprint(20 + i%2): "b",
				}},
			},
		}
	}
	return records
}

// Alternating returns n encoded examples with labels alternating 0 and 1
// over two categorical fields: colour with three levels and size with two.
func Alternating(n int) []models.Example {
	examples := make([]models.Example, n)
	for i := 0; i < n; i++ {
		examples[i] = models.Example{
			Target: models.Feature{Field: "is_click", Value: float64(i % 2)},
			Features: []models.Feature{
				{Field: "colour", Index: i % 3, Value: 1},
				{Field: "size", Index: i % 2, Value: 1},
			},
		}
	}
	return examples
}
