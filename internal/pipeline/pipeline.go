// Package pipeline runs the feature agents over raw rows, fitting them pass
// by pass and then rewriting rows into sparse features.
//
// # Overview
//
// A Pipeline holds ordered passes of agents. Fitting runs one traversal of
// the training stream per pass:
//   - Prepare is called on every agent of the pass
//   - every row is first rewritten by all agents fitted in earlier passes,
//     in fitted order, then observed by every agent of the pass
//   - Finalize freezes the agents of the pass, which join the fitted set
//
// Agents of later passes therefore see the output of earlier passes, never
// the reverse. Once fitted, Transform applies the same agents in the same
// order without observing anything.
//
// # Basic Usage
//
//	p, err := pipeline.FromConfig(cfg.Pipeline, agents.Deps{Categories: catalog})
//	if err != nil {
//		return err
//	}
//	raw := dataset.OpenRaw(cfg.Data.RawTrain)
//	err = p.Fit(ctx, func() iter.Seq2[models.Row, error] {
//		return pipeline.Rows(raw.All())
//	})
//
// # Replaced fields
//
// Right after an agent transforms a row, the fields it replaces (the source
// fields of a discretizer, the counters of a CTR agent) are removed, so a
// raw field never reaches the encoder once an agent has derived features
// from it.
package pipeline

import (
	"context"
	"fmt"
	"iter"

	"github.com/ajitpratap0/ctrflow/internal/agents"
	"github.com/ajitpratap0/ctrflow/pkg/config"
	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/logger"
	"github.com/ajitpratap0/ctrflow/pkg/models"
	"github.com/ajitpratap0/ctrflow/pkg/observability"
	"github.com/ajitpratap0/ctrflow/pkg/progress"
	"go.uber.org/zap"
)

// RowFactory returns a fresh traversal of the training rows. It is called
// once per pass.
type RowFactory func() iter.Seq2[models.Row, error]

// stage is a fitted agent with the fields it removes.
type stage struct {
	agent agents.Agent
	drop  map[string]struct{}
}

// Pipeline is an ordered set of agent passes. It is not safe for
// concurrent fitting; a fitted pipeline may transform rows from several
// goroutines as long as its agents are read-only after Finalize, which
// holds for every built-in agent.
type Pipeline struct {
	passes [][]agents.Agent // Agents grouped by pass, in declaration order
	fitted []stage          // Agents in fitted order with their replaced fields

	logger        *zap.Logger // Structured logger
	progressEvery int         // Records between progress lines; 0 disables them
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgressEvery logs progress every n rows of a fit pass.
func WithProgressEvery(n int) Option {
	return func(p *Pipeline) { p.progressEvery = n }
}

// New creates an unfitted pipeline from agent passes.
func New(passes [][]agents.Agent, opts ...Option) (*Pipeline, error) {
	if len(passes) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "pipeline needs at least one pass")
	}
	for i, pass := range passes {
		if len(pass) == 0 {
			return nil, errors.Newf(errors.ErrorTypeConfig, "pipeline pass %d has no agents", i)
		}
	}

	p := &Pipeline{
		passes: passes,
		logger: logger.With(zap.String("component", "pipeline")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// FromConfig builds the agents declared in cfg. Disabled agents are left
// out, and so is a pass whose agents are all disabled.
func FromConfig(cfg config.PipelineConfig, deps agents.Deps, opts ...Option) (*Pipeline, error) {
	passes := make([][]agents.Agent, 0, len(cfg.Passes))
	for i, pc := range cfg.Passes {
		pass := make([]agents.Agent, 0, len(pc.Agents))
		for j, spec := range pc.Agents {
			if spec.Disabled {
				continue
			}
			a, err := agents.Build(spec, deps)
			if err != nil {
				return nil, errors.Wrapf(err, errors.GetType(err), "pass %d agent %d", i, j)
			}
			pass = append(pass, a)
		}
		if len(pass) > 0 {
			passes = append(passes, pass)
		}
	}
	return New(passes, opts...)
}

// Fitted reports whether the pipeline can transform rows.
func (p *Pipeline) Fitted() bool {
	return len(p.fitted) > 0
}

// Passes returns the number of passes.
func (p *Pipeline) Passes() int {
	return len(p.passes)
}

// Fit fits every pass in order, calling factory once per pass. Fitting an
// already fitted pipeline starts over. The first stream error stops the
// fit and leaves the pipeline unfitted.
func (p *Pipeline) Fit(ctx context.Context, factory RowFactory) (err error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.fit")
	defer func() {
		span.Fail(err)
		span.End()
	}()
	span.SetAttribute("passes", len(p.passes))

	p.fitted = nil
	fitted := make([]stage, 0)

	for i, pass := range p.passes {
		if err := p.fitPass(ctx, i, pass, fitted, factory); err != nil {
			return err
		}
		for _, a := range pass {
			fitted = append(fitted, newStage(a))
		}
	}

	p.fitted = fitted
	return nil
}

func (p *Pipeline) fitPass(ctx context.Context, i int, pass []agents.Agent, fitted []stage, factory RowFactory) (err error) {
	name := fmt.Sprintf("fit_pass_%d", i+1)
	ctx = logger.ContextWithStage(ctx, name)
	log := logger.FromContext(ctx, p.logger)

	ctx, span := observability.StartSpan(ctx, "pipeline.fit.pass")
	defer func() {
		span.Fail(err)
		span.End()
	}()
	span.SetAttribute("pass", i+1)
	span.SetAttribute("agents", len(pass))

	log.Info("fitting pass", zap.Int("agents", len(pass)), zap.Int("fitted", len(fitted)))

	for _, a := range pass {
		a.Prepare()
	}

	reporter := progress.New(log, name, p.progressEvery)
	for row, err := range factory() {
		if err != nil {
			return errors.Wrapf(err, errors.GetType(err), "pass %d", i+1)
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeState, "fit cancelled")
		}

		row = apply(fitted, row)
		for _, a := range pass {
			a.Observe(row)
		}
		reporter.Tick()
	}
	span.SetAttribute("records", reporter.Processed())

	for _, a := range pass {
		if err := a.Finalize(); err != nil {
			return errors.Wrapf(err, errors.GetType(err), "finalize %s in pass %d", a.Kind(), i+1)
		}
	}
	reporter.Finish()
	return nil
}

// TransformRow rewrites a raw row with every fitted agent. The row's
// storage may be reused.
func (p *Pipeline) TransformRow(row models.Row) (models.Row, error) {
	if !p.Fitted() {
		return nil, errors.New(errors.ErrorTypeState, "pipeline is not fitted")
	}
	return apply(p.fitted, row), nil
}

// Transform rewrites a raw row and converts it to sparse features. Fields
// whose value cannot be a feature are dropped.
func (p *Pipeline) Transform(row models.Row) ([]models.Feature, error) {
	out, err := p.TransformRow(row)
	if err != nil {
		return nil, err
	}
	features, skipped := out.Features()
	if skipped > 0 {
		p.logger.Debug("non-numeric fields dropped", zap.Int("skipped", skipped))
	}
	return features, nil
}

func newStage(a agents.Agent) stage {
	s := stage{agent: a}
	if fields := a.ReplacedFields(); len(fields) > 0 {
		s.drop = make(map[string]struct{}, len(fields))
		for _, f := range fields {
			s.drop[f] = struct{}{}
		}
	}
	return s
}

func apply(stages []stage, row models.Row) models.Row {
	for _, s := range stages {
		row = s.agent.Transform(row)
		row = row.Without(s.drop)
	}
	return row
}

// Rows adapts a raw record stream to the rows the pipeline fits on. The
// head of each record, label or sample id, is not part of the row.
func Rows(records iter.Seq2[models.RawRecord, error]) iter.Seq2[models.Row, error] {
	return func(yield func(models.Row, error) bool) {
		for r, err := range records {
			if !yield(r.Fields, err) {
				return
			}
		}
	}
}
