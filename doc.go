// Package ctrflow predicts click-through rates from search-advertising logs
// with a streaming feature pipeline and an online logistic regression.
//
// ctrflow never loads a dataset into memory. Every stage reads
// line-delimited, optionally compressed records one at a time, so the size
// of a training run is bounded by disk, not RAM.
//
// # Architecture
//
// A run moves through four stages:
//
// 1. Sampling Stream (pkg/dataset): restartable iterators over raw or
// encoded records with offset, limit, skip-nth/every-nth selection and
// repeated cycles. Two samplings with the same modulus and phase split a
// file into disjoint train and test folds without copying it.
//
// 2. Feature Pipeline (internal/pipeline, internal/agents): ordered passes
// of agents. The first pass learns statistics (smoothed CTRs, price
// quantiles, category agreement, ad parameters); the second assigns
// one-hot slots to categorical levels in first-seen order. Each pass costs
// one traversal of the training set.
//
// 3. Online Learner (internal/learner): a single sequential pass of
// logistic regression with per-slot adaptive rates. While learning it
// derives leakage-free online features from a Bloom-filter interaction
// history (pkg/membership) and running entity counters.
//
// 4. Evaluator (internal/evaluator): log-loss, k-fold cross-validation
// with optionally parallel folds, and learning curves.
//
// # Quick Start
//
// Write the default configuration, then run every stage:
//
//	ctrflow config init ctrflow.yaml
//	ctrflow run --config ctrflow.yaml
//	ctrflow submit --config ctrflow.yaml
//
// Or drive the stages from Go:
//
//	p, _ := pipeline.FromConfig(cfg.Pipeline, agents.Deps{Categories: catalog})
//	raw := dataset.OpenRaw(cfg.Data.RawTrain)
//	_ = p.Fit(ctx, func() iter.Seq2[models.Row, error] { return pipeline.Rows(raw.All()) })
//
//	engine, _ := learner.New(cfg.Learner)
//	_ = engine.Fit(ctx, dataset.OpenSparse(cfg.Data.SparseTrain).All())
//	losses, _ := evaluator.KFold(ctx, newModel, dataset.OpenSparse(cfg.Data.SparseTrain), 5)
//
// # Observability
//
// Components log through a shared zap logger (pkg/logger), count records
// and losses in Prometheus collectors (pkg/metrics, served with
// --metrics-addr), open OpenTelemetry spans per pass and per fold
// (pkg/observability, enabled with --trace) and report throughput and
// resident memory while streaming (pkg/progress).
package ctrflow
