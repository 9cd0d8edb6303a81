package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Pipeline.Passes, 2)
	assert.Equal(t, 10.0, cfg.Learner.PriorStrength)
	assert.Zero(t, cfg.Learner.L1)
	assert.Zero(t, cfg.Learner.L2)
	assert.Equal(t, 1e-9, cfg.Evaluation.Epsilon)
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.Learner, cfg.Learner)
	assert.Equal(t, want.Evaluation, cfg.Evaluation)
	assert.Equal(t, want.Data, cfg.Data)
	require.Len(t, cfg.Pipeline.Passes, 2)
	assert.Equal(t, "onehot", cfg.Pipeline.Passes[1].Agents[0].Kind)
	assert.Equal(t, "price", cfg.Pipeline.Passes[0].Agents[3].Params["field"])
}

func TestParseOverridesAndReplacesLists(t *testing.T) {
	t.Setenv("CTRFLOW_TEST_DATA_DIR", "/srv/avito")

	cfg, err := Parse([]byte(`
name: nightly
data:
  raw_train: ${CTRFLOW_TEST_DATA_DIR}/train.jsonl.gz
learner:
  l2: 0.0001
evaluation:
  curve_sizes: [10, 20]
pipeline:
  passes:
    - name: only
      agents:
        - kind: onehot
          params:
            fields: [hour]
`))
	require.NoError(t, err)

	assert.Equal(t, "nightly", cfg.Name)
	assert.Equal(t, "/srv/avito/train.jsonl.gz", cfg.Data.RawTrain)
	assert.Equal(t, Default().Data.SparseTrain, cfg.Data.SparseTrain)
	assert.Equal(t, 0.0001, cfg.Learner.L2)
	assert.Equal(t, 10.0, cfg.Learner.PriorStrength, "unset keys keep defaults")
	assert.Equal(t, []int{10, 20}, cfg.Evaluation.CurveSizes)
	require.Len(t, cfg.Pipeline.Passes, 1)
	assert.Equal(t, "only", cfg.Pipeline.Passes[0].Name)
	assert.Equal(t, []interface{}{"hour"}, cfg.Pipeline.Passes[0].Agents[0].Params["fields"])
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("CTRFLOW_LEARNER_L1", "0.5")
	t.Setenv("CTRFLOW_EVALUATION_FOLDS", "3")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Learner.L1)
	assert.Equal(t, 3, cfg.Evaluation.Folds)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctrflow.yaml")
	cfg := Default()
	cfg.Name = "saved"
	cfg.Learner.L2 = 0.25
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.Name)
	assert.Equal(t, 0.25, loaded.Learner.L2)
	assert.Equal(t, cfg.Evaluation, loaded.Evaluation)
	require.NoError(t, loaded.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"no passes":      func(c *Config) { c.Pipeline.Passes = nil },
		"empty pass":     func(c *Config) { c.Pipeline.Passes[0].Agents = nil },
		"no kind":        func(c *Config) { c.Pipeline.Passes[0].Agents[0].Kind = "" },
		"prior":          func(c *Config) { c.Learner.PriorStrength = 0 },
		"negative l2":    func(c *Config) { c.Learner.L2 = -1 },
		"fp rate":        func(c *Config) { c.Learner.HistoryFalsePositiveRate = 1 },
		"folds":          func(c *Config) { c.Evaluation.Folds = 1 },
		"epsilon":        func(c *Config) { c.Evaluation.Epsilon = 0 },
		"curve size":     func(c *Config) { c.Evaluation.CurveSizes = []int{0} },
		"parallelism":    func(c *Config) { c.Evaluation.Parallelism = 0 },
		"missing ad key": func(c *Config) { c.Learner.AdIDField = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	require.NoError(t, os.Setenv("CTRFLOW_TEST_USER", "avito"))
	defer os.Unsetenv("CTRFLOW_TEST_USER")

	assert.Equal(t, "user=avito cost=$5", substituteEnvVars("user=${CTRFLOW_TEST_USER} cost=$5"))
	assert.Equal(t, "open ${", substituteEnvVars("open ${"))
}
