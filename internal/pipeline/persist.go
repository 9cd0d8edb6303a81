package pipeline

import (
	"io"
	"os"

	"github.com/ajitpratap0/ctrflow/internal/agents"
	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/json"
)

// artifactVersion is bumped whenever the artifact layout changes.
const artifactVersion = 1

type artifact struct {
	Version int            `json:"version"`
	Passes  [][]agentState `json:"passes"`
}

type agentState struct {
	Kind  string          `json:"kind"`
	State json.RawMessage `json:"state"`
}

// Save writes the fitted agents as one JSON document.
func (p *Pipeline) Save(w io.Writer) error {
	if !p.Fitted() {
		return errors.New(errors.ErrorTypeState, "cannot save an unfitted pipeline")
	}

	doc := artifact{Version: artifactVersion, Passes: make([][]agentState, len(p.passes))}
	for i, pass := range p.passes {
		for _, a := range pass {
			state, err := json.Marshal(a)
			if err != nil {
				return errors.Wrapf(err, errors.ErrorTypeInternal, "failed to encode agent %s", a.Kind())
			}
			doc.Passes[i] = append(doc.Passes[i], agentState{Kind: a.Kind(), State: state})
		}
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write pipeline")
	}
	return nil
}

// Load reads a pipeline written by Save. Deps supplies the collaborators
// agents cannot serialise, such as the category lookup.
func Load(r io.Reader, deps agents.Deps, opts ...Option) (*Pipeline, error) {
	var doc artifact
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode pipeline")
	}
	if doc.Version != artifactVersion {
		return nil, errors.Newf(errors.ErrorTypeData, "unsupported pipeline version %d", doc.Version)
	}

	passes := make([][]agents.Agent, 0, len(doc.Passes))
	for i, states := range doc.Passes {
		pass := make([]agents.Agent, 0, len(states))
		for j, st := range states {
			a, err := agents.New(st.Kind, deps)
			if err != nil {
				return nil, errors.Wrapf(err, errors.GetType(err), "pass %d agent %d", i, j)
			}
			if err := json.Unmarshal(st.State, a); err != nil {
				return nil, errors.Wrapf(err, errors.ErrorTypeData, "failed to restore agent %s", st.Kind)
			}
			if err := a.Validate(); err != nil {
				return nil, err
			}
			pass = append(pass, a)
		}
		passes = append(passes, pass)
	}

	p, err := New(passes, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid pipeline artifact")
	}
	for _, pass := range passes {
		for _, a := range pass {
			p.fitted = append(p.fitted, newStage(a))
		}
	}
	return p, nil
}

// SaveFile writes the pipeline to path.
func (p *Pipeline) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create pipeline file").WithDetail("path", path)
	}
	if err := p.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close pipeline file").WithDetail("path", path)
	}
	return nil
}

// LoadFile reads a pipeline from path.
func LoadFile(path string, deps agents.Deps, opts ...Option) (*Pipeline, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open pipeline file").WithDetail("path", path)
	}
	defer f.Close()
	return Load(f, deps, opts...)
}
