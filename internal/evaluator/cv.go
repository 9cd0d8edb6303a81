package evaluator

import (
	"context"
	"iter"
	"slices"

	"github.com/ajitpratap0/ctrflow/pkg/dataset"
	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/logger"
	"github.com/ajitpratap0/ctrflow/pkg/metrics"
	"github.com/ajitpratap0/ctrflow/pkg/models"
	"github.com/ajitpratap0/ctrflow/pkg/observability"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// KFold cross-validates models built by newModel on ds. Fold i fits on
// every record outside the i-th residue class modulo k and scores on the
// records inside it. It returns one loss per fold, in fold order.
//
// The dataset is traversed twice per fold, so it must be restartable; this
// is checked before any model is fitted.
func KFold(ctx context.Context, newModel Factory, ds *dataset.Dataset[models.Example], k int, opts ...Option) (losses []float64, err error) {
	if k < 2 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "k-fold needs at least 2 folds, got %d", k)
	}
	if !ds.Restartable() {
		return nil, errors.New(errors.ErrorTypeCapability, "cross-validation needs a restartable dataset").
			WithDetail("source", ds.String())
	}

	o := buildOptions(opts)
	ctx = logger.ContextWithStage(ctx, "cv")
	ctx, span := observability.StartSpan(ctx, "cv")
	defer func() {
		span.Fail(err)
		span.End()
	}()
	span.SetAttribute("folds", k)
	span.SetAttribute("parallelism", o.parallelism)

	throughput := metrics.NewThroughputTracker("cv")
	losses = make([]float64, k)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for i := 0; i < k; i++ {
		g.Go(func() error {
			loss, n, err := runFold(logger.ContextWithFold(gctx, i), newModel, ds, k, i, o)
			if err != nil {
				return errors.Wrapf(err, errors.GetType(err), "fold %d/%d", i+1, k)
			}
			losses[i] = loss
			throughput.Increment(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary, err := Summarize(losses)
	if err != nil {
		return nil, err
	}
	o.logger.Info("cross-validation completed",
		zap.Int("folds", k),
		zap.Float64s("losses", losses),
		zap.Float64("mean", summary.Mean),
		zap.Float64("stddev", summary.StdDev),
		zap.Float64("records_per_second", throughput.GetAndReset()))
	return losses, nil
}

func runFold(ctx context.Context, newModel Factory, ds *dataset.Dataset[models.Example], k, i int, o options) (loss float64, n int64, err error) {
	log := logger.FromContext(ctx, o.logger)
	ctx, span := observability.StartSpan(ctx, "cv.fold")
	defer func() {
		span.Fail(err)
		span.End()
	}()
	span.SetAttribute("fold", i)

	m, err := newModel()
	if err != nil {
		return 0, 0, err
	}
	if err := m.Fit(ctx, ds.Iterate(dataset.Train(k, i))); err != nil {
		return 0, 0, err
	}

	test := counted(ds.Iterate(dataset.Test(k, i)), &n)
	loss, err = Score(m, test, WithEpsilon(o.epsilon))
	if err != nil {
		return 0, 0, err
	}

	metrics.FoldLogLoss.WithLabelValues(metrics.Fold(i)).Set(loss)
	span.SetAttribute("logloss", loss)
	log.Info("fold scored", zap.Int("fold", i+1), zap.Int("of", k), zap.Float64("logloss", loss))
	return loss, n, nil
}

// CurvePoint is the loss of a model fitted on the first Size training
// records, measured on those records and on the holdout.
type CurvePoint struct {
	Size  int     `json:"size"`
	Train float64 `json:"train"`
	Test  float64 `json:"test"`
}

// LearningCurve fits one model per size on a prefix of the records outside
// the holdout, where the holdout is every holdoutNth record. Sizes are
// evaluated in increasing order.
func LearningCurve(ctx context.Context, newModel Factory, ds *dataset.Dataset[models.Example], sizes []int, holdoutNth int, opts ...Option) (points []CurvePoint, err error) {
	if holdoutNth < 2 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "holdout_nth must be at least 2, got %d", holdoutNth)
	}
	if !ds.Restartable() {
		return nil, errors.New(errors.ErrorTypeCapability, "learning curves need a restartable dataset").
			WithDetail("source", ds.String())
	}

	o := buildOptions(opts)
	ctx = logger.ContextWithStage(ctx, "curve")
	log := logger.FromContext(ctx, o.logger)
	ctx, span := observability.StartSpan(ctx, "curve")
	defer func() {
		span.Fail(err)
		span.End()
	}()

	ordered := append([]int(nil), sizes...)
	slices.Sort(ordered)

	holdout := dataset.Sampling{EveryNth: holdoutNth}
	for _, size := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeState, "learning curve cancelled")
		}
		train := dataset.Sampling{SkipNth: holdoutNth, Limit: size}

		m, err := newModel()
		if err != nil {
			return nil, err
		}
		if err := m.Fit(ctx, ds.Iterate(train)); err != nil {
			return nil, errors.Wrapf(err, errors.GetType(err), "curve size %d", size)
		}
		trainLoss, err := Score(m, ds.Iterate(train), WithEpsilon(o.epsilon))
		if err != nil {
			return nil, err
		}
		testLoss, err := Score(m, ds.Iterate(holdout), WithEpsilon(o.epsilon))
		if err != nil {
			return nil, err
		}

		p := CurvePoint{Size: size, Train: trainLoss, Test: testLoss}
		log.Info("curve point", zap.Int("size", size), zap.Float64("train", trainLoss), zap.Float64("test", testLoss))
		points = append(points, p)
	}
	span.SetAttribute("points", len(points))
	return points, nil
}

// Summary describes a set of losses.
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize computes the mean, population standard deviation and range of
// losses.
func Summarize(losses []float64) (Summary, error) {
	data := stats.Float64Data(losses)
	mean, err := stats.Mean(data)
	if err != nil {
		return Summary{}, errors.Wrap(err, errors.ErrorTypeValidation, "cannot summarize losses")
	}
	sd, err := stats.StandardDeviation(data)
	if err != nil {
		return Summary{}, errors.Wrap(err, errors.ErrorTypeValidation, "cannot summarize losses")
	}
	lo, err := stats.Min(data)
	if err != nil {
		return Summary{}, errors.Wrap(err, errors.ErrorTypeValidation, "cannot summarize losses")
	}
	hi, err := stats.Max(data)
	if err != nil {
		return Summary{}, errors.Wrap(err, errors.ErrorTypeValidation, "cannot summarize losses")
	}
	return Summary{Mean: mean, StdDev: sd, Min: lo, Max: hi}, nil
}

// counted passes seq through and counts the records into n.
func counted(seq iter.Seq2[models.Example, error], n *int64) iter.Seq2[models.Example, error] {
	return func(yield func(models.Example, error) bool) {
		for ex, err := range seq {
			if err == nil {
				*n++
			}
			if !yield(ex, err) {
				return
			}
		}
	}
}
