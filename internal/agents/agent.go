// Package agents implements the feature agents of the transformation
// pipeline.
//
// An agent optionally collects statistics over one full pass of the
// training stream (Prepare, Observe, Finalize) and always exposes a pure
// Transform. Agents are created by kind through a registry so that the
// pipeline can be declared in configuration:
//
//	agent, err := agents.Build(config.AgentSpec{
//		Kind:   agents.KindQuantile,
//		Params: map[string]interface{}{"field": "price", "buckets": 20},
//	}, agents.Deps{})
//
// Fitted agents serialise their parameters and learned state as JSON so a
// fitted pipeline can be stored and loaded as one artifact.
package agents

import (
	"github.com/ajitpratap0/ctrflow/pkg/models"
	"go.uber.org/zap"
)

// Agent is one step of the feature pipeline.
type Agent interface {
	// Kind returns the registry name of the agent.
	Kind() string
	// Validate checks the parameters before any data is seen.
	Validate() error
	// Prepare resets the statistics collected by Observe.
	Prepare()
	// Observe collects statistics from one row of the fit pass.
	Observe(row models.Row)
	// Finalize freezes the learned parameters.
	Finalize() error
	// Transform rewrites a row using the frozen parameters. The returned row
	// may share storage with the input.
	Transform(row models.Row) models.Row
	// ReplacedFields lists the fields removed from the row right after
	// Transform.
	ReplacedFields() []string
}

// Base supplies the optional lifecycle hooks as no-ops. Agents that only
// transform embed it.
type Base struct{}

// Validate accepts any parameters.
func (Base) Validate() error { return nil }

// Prepare does nothing.
func (Base) Prepare() {}

// Observe does nothing.
func (Base) Observe(models.Row) {}

// Finalize does nothing.
func (Base) Finalize() error { return nil }

// ReplacedFields removes nothing.
func (Base) ReplacedFields() []string { return nil }

// Deps carries the collaborators injected into agents at construction.
type Deps struct {
	// Categories resolves category ids for the category agreement agent.
	Categories CategoryLookup
	// Lemmatizer reduces words to a base form for the text agent. The
	// Porter stemmer is used when nil.
	Lemmatizer Lemmatizer
	// Logger receives fit summaries. A no-op logger is used when nil.
	Logger *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}
