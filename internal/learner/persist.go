package learner

import (
	"io"
	"os"

	"github.com/ajitpratap0/ctrflow/pkg/config"
	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/json"
	"github.com/ajitpratap0/ctrflow/pkg/sparse"
)

// modelVersion is bumped whenever the artifact layout changes.
const modelVersion = 1

type artifact struct {
	Version            int                  `json:"version"`
	Config             config.LearnerConfig `json:"config"`
	Records            int64                `json:"records"`
	ProgressiveLogLoss float64              `json:"progressive_logloss"`
	Weights            []sparse.Entry       `json:"weights"`
}

// Save writes the weights of a trained engine as one JSON document.
func (e *Engine) Save(w io.Writer) error {
	if st := e.State(); st != StateTrained {
		return errors.Newf(errors.ErrorTypeState, "cannot save a %s engine", st)
	}
	doc := artifact{
		Version:            modelVersion,
		Config:             e.cfg,
		Records:            e.seen,
		ProgressiveLogLoss: e.ProgressiveLogLoss(),
		Weights:            e.Weights(),
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write model")
	}
	return nil
}

// Load reads an engine written by Save. The engine is trained and only
// serves Predict and Weights.
func Load(r io.Reader, opts ...Option) (*Engine, error) {
	var doc artifact
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode model")
	}
	if doc.Version != modelVersion {
		return nil, errors.Newf(errors.ErrorTypeData, "unsupported model version %d", doc.Version)
	}

	e, err := New(doc.Config, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid model artifact")
	}
	e.weights.Load(doc.Weights)
	e.seen = doc.Records
	e.loss = doc.ProgressiveLogLoss * float64(doc.Records)
	e.state = StateTrained
	return e, nil
}

// SaveFile writes the engine to path.
func (e *Engine) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create model file").WithDetail("path", path)
	}
	if err := e.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close model file").WithDetail("path", path)
	}
	return nil
}

// LoadFile reads an engine from path.
func LoadFile(path string, opts ...Option) (*Engine, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open model file").WithDetail("path", path)
	}
	defer f.Close()
	return Load(f, opts...)
}
