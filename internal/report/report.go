// Package report renders fitted models and predictions for people and for
// the submission format.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"strconv"
	"text/tabwriter"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/sparse"
)

// SubmissionHeader is the first line of a submission file.
var SubmissionHeader = []string{"ID", "IsClick"}

// Prediction is the click probability of one test sample.
type Prediction struct {
	ID          string
	Probability float64
}

// WriteTopFeatures prints the last n entries of a ranking ordered by
// ascending magnitude, so the strongest weight is printed last. n <= 0
// prints every entry.
func WriteTopFeatures(w io.Writer, entries []sparse.Entry, n int) error {
	if n > 0 && n < len(entries) {
		entries = entries[len(entries)-n:]
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "FIELD\tINDEX\tWEIGHT\t")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%.6f\t\n", e.Field, e.Index, e.Weight)
	}
	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write feature table")
	}
	return nil
}

// WriteSubmission writes one row per prediction in the order produced. A
// stream error stops the file where it happened and is returned.
func WriteSubmission(w io.Writer, predictions iter.Seq2[Prediction, error]) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(SubmissionHeader); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to write submission header")
	}

	n := 0
	for p, err := range predictions {
		if err != nil {
			cw.Flush()
			return n, err
		}
		if err := cw.Write([]string{p.ID, strconv.FormatFloat(p.Probability, 'g', -1, 64)}); err != nil {
			return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to write submission").WithDetail("row", n+1)
		}
		n++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to flush submission")
	}
	return n, nil
}
