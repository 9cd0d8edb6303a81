// Package learner implements the online logistic regression that turns an
// encoded click log into weights.
//
// # Overview
//
// An Engine makes exactly one sequential pass over its training stream.
// For every example it:
//   - derives the online features (interaction history and running CTR of
//     the ad and the user) from the records seen before it
//   - predicts with the current weights
//   - moves each touched weight against the error with a per-slot rate
//     1/(prior + sqrt(updates)) that decays with the slot's frequency
//
// The loss of each prediction made before its update is tracked as the
// progressive log-loss of the pass.
//
// # Basic Usage
//
//	engine, err := learner.New(cfg.Learner)
//	if err != nil {
//		return err
//	}
//	if err := engine.Fit(ctx, dataset.OpenSparse(path).All()); err != nil {
//		return err
//	}
//	p := engine.Predict(features)
//
// Predict does not derive online features; they depend on history that
// only exists while fitting.
package learner

import (
	"context"
	"iter"
	"math"
	"sync"

	"github.com/ajitpratap0/ctrflow/internal/evaluator"
	"github.com/ajitpratap0/ctrflow/pkg/config"
	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/logger"
	"github.com/ajitpratap0/ctrflow/pkg/metrics"
	"github.com/ajitpratap0/ctrflow/pkg/models"
	"github.com/ajitpratap0/ctrflow/pkg/observability"
	"github.com/ajitpratap0/ctrflow/pkg/progress"
	"github.com/ajitpratap0/ctrflow/pkg/sparse"
	"go.uber.org/zap"
)

// State is the lifecycle stage of an Engine.
type State int

const (
	StateUntrained State = iota
	StateFitting
	StateTrained
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUntrained:
		return "untrained"
	case StateFitting:
		return "fitting"
	case StateTrained:
		return "trained"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// maxMargin bounds |z| so Predict stays strictly inside (0, 1).
const maxMargin = 35.0

// Engine is an online logistic regression. Fit may run once; Predict reads
// the weights and must not race with Fit.
type Engine struct {
	cfg    config.LearnerConfig
	logger *zap.Logger

	mu    sync.Mutex
	state State

	weights *sparse.Vector
	updates *sparse.Counter

	seen int64
	loss float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an untrained engine.
func New(cfg config.LearnerConfig, opts ...Option) (*Engine, error) {
	if cfg.PriorStrength <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "prior strength must be positive, got %g", cfg.PriorStrength)
	}
	if cfg.L1 < 0 || cfg.L2 < 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "regularization strengths must not be negative")
	}
	if cfg.OnlineFeatures && (cfg.AdIDField == "" || cfg.UserIDField == "") {
		return nil, errors.New(errors.ErrorTypeConfig, "online features need the ad and user id fields")
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "learner")),
		weights: sparse.NewVector(),
		updates: sparse.NewCounter(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// State returns the lifecycle stage.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) transition(from, to State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != from {
		return errors.Newf(errors.ErrorTypeState, "engine is %s, expected %s", e.state, from)
	}
	e.state = to
	return nil
}

// Fit trains the engine with one pass over seq, in order. An empty stream
// leaves the engine trained with no weights. A stream error or a cancelled
// context stops the pass and leaves the engine failed.
func (e *Engine) Fit(ctx context.Context, seq iter.Seq2[models.Example, error]) (err error) {
	if err := e.transition(StateUntrained, StateFitting); err != nil {
		return err
	}
	defer func() {
		e.mu.Lock()
		if err != nil {
			e.state = StateFailed
		} else {
			e.state = StateTrained
		}
		e.mu.Unlock()
	}()

	ctx = logger.ContextWithStage(ctx, "learn")
	log := logger.FromContext(ctx, e.logger)
	ctx, span := observability.StartSpan(ctx, "learner.fit")
	defer func() {
		span.SetAttribute("records", e.seen)
		span.SetAttribute("weights", e.weights.Len())
		span.Fail(err)
		span.End()
	}()

	var hist *history
	if e.cfg.OnlineFeatures {
		if hist, err = newHistory(e.cfg); err != nil {
			return err
		}
	}

	reporter := progress.New(log, "learn", e.cfg.ProgressEvery)
	for ex, err := range seq {
		if err != nil {
			return errors.Wrapf(err, errors.GetType(err), "learning stopped after %d records", e.seen)
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeState, "fit cancelled")
		}

		label := ex.Label()
		features, ad, user := splitIDs(ex.Features, e.cfg.AdIDField, e.cfg.UserIDField)
		if hist != nil {
			features = hist.derive(features, ad, user, label)
		}

		p := e.Predict(features)
		e.loss += evaluator.SampleLogLoss(p, label)
		e.seen++
		e.update(features, p-label)

		reporter.Tick(zap.Float64("progressive_logloss", e.ProgressiveLogLoss()))
	}

	metrics.ModelSize.Set(float64(e.weights.Len()))
	if e.seen > 0 {
		metrics.ProgressiveLogLoss.Set(e.ProgressiveLogLoss())
	}
	reporter.Finish(
		zap.Int("weights", e.weights.Len()),
		zap.Float64("progressive_logloss", e.ProgressiveLogLoss()),
	)
	return nil
}

// update applies one gradient step for an example with the given error.
func (e *Engine) update(features []models.Feature, residual float64) {
	for _, f := range features {
		k := sparse.KeyOf(f)
		w := e.weights.Get(k)
		rate := 1 / (e.cfg.PriorStrength + math.Sqrt(float64(e.updates.Get(k))))

		grad := residual * f.Value
		if e.cfg.L2 > 0 {
			grad += e.cfg.L2 * w
		}
		if e.cfg.L1 > 0 {
			grad += e.cfg.L1 * sign(w)
		}

		e.weights.Set(k, w-rate*grad)
		e.updates.Inc(k)
	}
}

// Predict returns the click probability of features with the current
// weights. Unknown slots weigh 0.
func (e *Engine) Predict(features []models.Feature) float64 {
	return sigmoid(e.weights.Dot(features))
}

// ProgressiveLogLoss returns the mean log-loss of the predictions made
// before each update, 0 before any record.
func (e *Engine) ProgressiveLogLoss() float64 {
	if e.seen == 0 {
		return 0
	}
	return e.loss / float64(e.seen)
}

// Seen returns the number of records learned from.
func (e *Engine) Seen() int64 {
	return e.seen
}

// Weights returns every weight ordered by ascending magnitude, so the most
// influential slots come last.
func (e *Engine) Weights() []sparse.Entry {
	return e.weights.Ranked()
}

func sigmoid(z float64) float64 {
	z = math.Max(-maxMargin, math.Min(maxMargin, z))
	return 1 / (1 + math.Exp(-z))
}

func sign(w float64) float64 {
	switch {
	case w > 0:
		return 1
	case w < 0:
		return -1
	default:
		return 0
	}
}
