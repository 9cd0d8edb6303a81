package main

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"

	"go.uber.org/zap"

	"github.com/ajitpratap0/ctrflow/internal/agents"
	"github.com/ajitpratap0/ctrflow/internal/evaluator"
	"github.com/ajitpratap0/ctrflow/internal/learner"
	"github.com/ajitpratap0/ctrflow/internal/pipeline"
	"github.com/ajitpratap0/ctrflow/internal/report"
	"github.com/ajitpratap0/ctrflow/pkg/compression"
	"github.com/ajitpratap0/ctrflow/pkg/dataset"
	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/models"
)

// datasetOptions applies the data section to dataset readers and writers.
func (a *app) datasetOptions() ([]dataset.Option, error) {
	opts := []dataset.Option{dataset.WithBufferSize(a.cfg.Data.BufferSize)}
	alg, ok, err := compression.Parse(a.cfg.Data.Compression)
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, dataset.WithCompression(alg))
	}
	return opts, nil
}

// deps loads the collaborators the agents need. The category table comes
// from Postgres when a DSN is configured, from the CSV otherwise.
func (a *app) deps(ctx context.Context) (agents.Deps, error) {
	deps := agents.Deps{Logger: a.log}

	data := a.cfg.Data
	switch {
	case data.CategoriesDSN != "":
		catalog, err := agents.LoadCategoriesPostgres(ctx, data.CategoriesDSN, data.CategoriesQuery)
		if err != nil {
			return deps, err
		}
		a.log.Info("category table loaded", zap.String("source", "postgres"), zap.Int("categories", len(catalog)))
		deps.Categories = catalog
	case data.Categories != "":
		catalog, err := agents.LoadCategoriesCSV(data.Categories)
		if err != nil {
			return deps, err
		}
		a.log.Info("category table loaded", zap.String("source", data.Categories), zap.Int("categories", len(catalog)))
		deps.Categories = catalog
	}
	return deps, nil
}

func (a *app) importTSV(ctx context.Context, input, output string, spec dataset.TSVSpec) (int, error) {
	opts, err := a.datasetOptions()
	if err != nil {
		return 0, err
	}
	f, err := os.Open(input) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to open TSV export").WithDetail("path", input)
	}
	defer f.Close()

	w, err := dataset.CreateRaw(output, opts...)
	if err != nil {
		return 0, err
	}
	n, err := dataset.ImportTSV(ctx, f, w, spec)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, err
	}
	a.log.Info("TSV imported", zap.String("input", input), zap.String("output", output), zap.Int("records", n))
	return n, nil
}

func (a *app) fitPipeline(ctx context.Context) error {
	opts, err := a.datasetOptions()
	if err != nil {
		return err
	}
	deps, err := a.deps(ctx)
	if err != nil {
		return err
	}

	p, err := pipeline.FromConfig(a.cfg.Pipeline, deps, pipeline.WithProgressEvery(a.cfg.Learner.ProgressEvery))
	if err != nil {
		return err
	}
	raw := dataset.OpenRaw(a.cfg.Data.RawTrain, opts...)
	if err := p.Fit(ctx, func() iter.Seq2[models.Row, error] { return pipeline.Rows(raw.All()) }); err != nil {
		return err
	}
	if err := p.SaveFile(a.cfg.Data.Pipeline); err != nil {
		return err
	}
	a.log.Info("pipeline saved", zap.String("path", a.cfg.Data.Pipeline), zap.Int("passes", p.Passes()))
	return nil
}

func (a *app) transform(ctx context.Context) error {
	opts, err := a.datasetOptions()
	if err != nil {
		return err
	}
	deps, err := a.deps(ctx)
	if err != nil {
		return err
	}
	p, err := pipeline.LoadFile(a.cfg.Data.Pipeline, deps, pipeline.WithProgressEvery(a.cfg.Learner.ProgressEvery))
	if err != nil {
		return err
	}

	pairs := [][2]string{{a.cfg.Data.RawTrain, a.cfg.Data.SparseTrain}}
	if a.cfg.Data.RawTest != "" && a.cfg.Data.SparseTest != "" {
		if _, err := os.Stat(a.cfg.Data.RawTest); err == nil {
			pairs = append(pairs, [2]string{a.cfg.Data.RawTest, a.cfg.Data.SparseTest})
		} else {
			a.log.Warn("raw test set not found, skipping", zap.String("path", a.cfg.Data.RawTest))
		}
	}

	for _, pair := range pairs {
		in, out := pair[0], pair[1]
		w, err := dataset.CreateSparse(out, opts...)
		if err != nil {
			return err
		}
		n, err := p.TransformDataset(ctx, dataset.OpenRaw(in, opts...), w)
		if closeErr := w.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return err
		}
		a.log.Info("dataset encoded", zap.String("input", in), zap.String("output", out), zap.Int("records", n))
	}
	return nil
}

func (a *app) newModel() (evaluator.Model, error) {
	return learner.New(a.cfg.Learner)
}

func (a *app) fit(ctx context.Context, out io.Writer) error {
	opts, err := a.datasetOptions()
	if err != nil {
		return err
	}
	engine, err := learner.New(a.cfg.Learner)
	if err != nil {
		return err
	}
	if err := engine.Fit(ctx, dataset.OpenSparse(a.cfg.Data.SparseTrain, opts...).All()); err != nil {
		return err
	}
	if err := engine.SaveFile(a.cfg.Data.Model); err != nil {
		return err
	}
	a.log.Info("model saved",
		zap.String("path", a.cfg.Data.Model),
		zap.Int64("records", engine.Seen()),
		zap.Float64("progressive_logloss", engine.ProgressiveLogLoss()))

	fmt.Fprintf(out, "Progressive log-loss: %.6f over %d records\n\n", engine.ProgressiveLogLoss(), engine.Seen())
	return report.WriteTopFeatures(out, engine.Weights(), a.cfg.Evaluation.TopFeatures)
}

func (a *app) crossValidate(ctx context.Context, out io.Writer) error {
	opts, err := a.datasetOptions()
	if err != nil {
		return err
	}
	e := a.cfg.Evaluation
	losses, err := evaluator.KFold(ctx, a.newModel, dataset.OpenSparse(a.cfg.Data.SparseTrain, opts...), e.Folds,
		evaluator.WithEpsilon(e.Epsilon), evaluator.WithParallelism(e.Parallelism))
	if err != nil {
		return err
	}
	for i, loss := range losses {
		fmt.Fprintf(out, "CV %d/%d score: %.6f\n", i+1, len(losses), loss)
	}
	summary, err := evaluator.Summarize(losses)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "CV mean: %.6f stddev: %.6f min: %.6f max: %.6f\n", summary.Mean, summary.StdDev, summary.Min, summary.Max)
	return nil
}

func (a *app) curve(ctx context.Context, out io.Writer) error {
	opts, err := a.datasetOptions()
	if err != nil {
		return err
	}
	e := a.cfg.Evaluation
	points, err := evaluator.LearningCurve(ctx, a.newModel, dataset.OpenSparse(a.cfg.Data.SparseTrain, opts...),
		e.CurveSizes, e.HoldoutNth, evaluator.WithEpsilon(e.Epsilon))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%10s  %10s  %10s\n", "SIZE", "TRAIN", "TEST")
	for _, p := range points {
		fmt.Fprintf(out, "%10d  %10.6f  %10.6f\n", p.Size, p.Train, p.Test)
	}
	return nil
}

func (a *app) submit(ctx context.Context) (n int, err error) {
	opts, err := a.datasetOptions()
	if err != nil {
		return 0, err
	}
	engine, err := learner.LoadFile(a.cfg.Data.Model)
	if err != nil {
		return 0, err
	}

	f, err := os.Create(a.cfg.Data.Submission)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to create submission").WithDetail("path", a.cfg.Data.Submission)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = errors.Wrap(closeErr, errors.ErrorTypeFile, "failed to close submission")
		}
	}()

	test := dataset.OpenSparse(a.cfg.Data.SparseTest, opts...)
	predictions := func(yield func(report.Prediction, error) bool) {
		for ex, err := range test.All() {
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				yield(report.Prediction{}, err)
				return
			}
			if !yield(report.Prediction{ID: ex.ID(), Probability: engine.Predict(ex.Features)}, nil) {
				return
			}
		}
	}

	n, err = report.WriteSubmission(f, predictions)
	if err != nil {
		return n, err
	}
	a.log.Info("submission written", zap.String("path", a.cfg.Data.Submission), zap.Int("rows", n))
	return n, nil
}
