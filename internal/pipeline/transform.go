package pipeline

import (
	"context"

	"github.com/ajitpratap0/ctrflow/pkg/dataset"
	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/logger"
	"github.com/ajitpratap0/ctrflow/pkg/metrics"
	"github.com/ajitpratap0/ctrflow/pkg/models"
	"github.com/ajitpratap0/ctrflow/pkg/observability"
	"github.com/ajitpratap0/ctrflow/pkg/progress"
	"go.uber.org/zap"
)

// TransformDataset encodes every raw record of in and appends it to out,
// keeping the head (label or sample id) as the first triple. It returns the
// number of records written. out is not closed.
func (p *Pipeline) TransformDataset(ctx context.Context, in *dataset.Dataset[models.RawRecord], out *dataset.Writer[models.Example]) (n int, err error) {
	if !p.Fitted() {
		return 0, errors.New(errors.ErrorTypeState, "pipeline is not fitted")
	}

	ctx = logger.ContextWithStage(ctx, "transform")
	log := logger.FromContext(ctx, p.logger)
	ctx, span := observability.StartSpan(ctx, "pipeline.transform")
	defer func() {
		span.SetAttribute("records", n)
		span.Fail(err)
		span.End()
	}()
	span.SetAttribute("input", in.String())

	reporter := progress.New(log, "transform", p.progressEvery)
	emitted := metrics.FeaturesEmitted.WithLabelValues("transform")

	for rec, err := range in.All() {
		if err != nil {
			return n, err
		}
		if err := ctx.Err(); err != nil {
			return n, errors.Wrap(err, errors.ErrorTypeState, "transform cancelled")
		}

		target, ok := models.Float(rec.Head.Value)
		if !ok {
			return n, errors.Newf(errors.ErrorTypeData, "head %s is not numeric", rec.Head.Name).
				WithDetail("line", n+1)
		}
		features, err := p.Transform(rec.Fields)
		if err != nil {
			return n, err
		}

		ex := models.Example{
			Target:   models.Feature{Field: rec.Head.Name, Value: target},
			Features: features,
		}
		if err := out.Append(ex); err != nil {
			return n, err
		}
		n++
		emitted.Add(float64(len(features)))
		reporter.Tick()
	}

	reporter.Finish(zap.Int("written", n))
	return n, nil
}
