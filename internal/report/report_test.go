package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func predictions(items ...Prediction) func(func(Prediction, error) bool) {
	return func(yield func(Prediction, error) bool) {
		for _, p := range items {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func TestWriteTopFeatures(t *testing.T) {
	ranked := []sparse.Entry{
		{Field: "hour", Index: 3, Weight: 0.01},
		{Field: "ad_ctr", Index: 0, Weight: -0.5},
		{Field: "user_clicked_ad", Index: 0, Weight: 2.25},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTopFeatures(&buf, ranked, 2))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "FIELD")
	assert.Contains(t, lines[1], "ad_ctr")
	assert.Contains(t, lines[1], "-0.500000")
	assert.Contains(t, lines[2], "user_clicked_ad")
	assert.Equal(t, len(lines[1]), len(lines[2]), "columns are aligned")

	buf.Reset()
	require.NoError(t, WriteTopFeatures(&buf, ranked, 0))
	assert.Equal(t, 4, strings.Count(buf.String(), "\n"))
}

func TestWriteSubmission(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteSubmission(&buf, predictions(
		Prediction{ID: "17", Probability: 0.25},
		Prediction{ID: "3", Probability: 0.5},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ID,IsClick\n17,0.25\n3,0.5\n", buf.String())
}

func TestWriteSubmissionStopsOnError(t *testing.T) {
	broken := func(yield func(Prediction, error) bool) {
		if !yield(Prediction{ID: "1", Probability: 0.1}, nil) {
			return
		}
		yield(Prediction{}, errors.New(errors.ErrorTypeData, "malformed record"))
	}

	var buf bytes.Buffer
	n, err := WriteSubmission(&buf, broken)
	assert.Equal(t, 1, n)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	assert.Equal(t, "ID,IsClick\n1,0.1\n", buf.String())
}
