// Package evaluator measures models with log-loss: on a stream, by k-fold
// cross-validation over a restartable dataset, and along a learning curve.
//
// Folds and curve points never share a model. Each one builds its own
// through the Factory, fits it on a sampled view of the dataset and scores
// it on the disjoint complement, so folds may run in parallel.
package evaluator

import (
	"context"
	"iter"
	"math"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/logger"
	"github.com/ajitpratap0/ctrflow/pkg/models"
	"go.uber.org/zap"
)

// DefaultEpsilon clips predictions away from 0 and 1 before taking logs.
const DefaultEpsilon = 1e-9

// Predictor returns a click probability for encoded features.
type Predictor interface {
	Predict(features []models.Feature) float64
}

// Model is a Predictor that can be fitted once on a stream.
type Model interface {
	Predictor
	Fit(ctx context.Context, seq iter.Seq2[models.Example, error]) error
}

// Factory builds a fresh, unfitted model.
type Factory func() (Model, error)

type options struct {
	epsilon     float64
	parallelism int
	logger      *zap.Logger
}

// Option configures an evaluation.
type Option func(*options)

// WithEpsilon sets the clipping margin.
func WithEpsilon(eps float64) Option {
	return func(o *options) {
		if eps > 0 && eps < 0.5 {
			o.epsilon = eps
		}
	}
}

// WithParallelism trains up to n folds at once.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		epsilon:     DefaultEpsilon,
		parallelism: 1,
		logger:      logger.With(zap.String("component", "evaluator")),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SampleLogLoss is the log-loss of one prediction, clipped with
// DefaultEpsilon.
func SampleLogLoss(p, y float64) float64 {
	return SampleLogLossEps(p, y, DefaultEpsilon)
}

// SampleLogLossEps is the log-loss of one prediction with p clipped to
// [eps, 1-eps].
func SampleLogLossEps(p, y, eps float64) float64 {
	p = math.Max(math.Min(p, 1-eps), eps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

// Score returns the mean log-loss of m over seq. An empty stream is a data
// error since its mean is undefined.
func Score(m Predictor, seq iter.Seq2[models.Example, error], opts ...Option) (float64, error) {
	o := buildOptions(opts)

	n := 0
	loss := 0.0
	for ex, err := range seq {
		if err != nil {
			return 0, err
		}
		loss += SampleLogLossEps(m.Predict(ex.Features), ex.Label(), o.epsilon)
		n++
	}
	if n == 0 {
		return 0, errors.New(errors.ErrorTypeData, "cannot score an empty stream")
	}
	return loss / float64(n), nil
}
