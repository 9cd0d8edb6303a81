package config

import (
	"github.com/ajitpratap0/ctrflow/pkg/errors"
)

// Config is the complete configuration of a run.
type Config struct {
	// Name identifies the run in logs and traces
	Name string `yaml:"name" json:"name" mapstructure:"name"`

	// Data locates datasets and artifacts
	Data DataConfig `yaml:"data" json:"data" mapstructure:"data"`

	// Pipeline declares the feature agents
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline" mapstructure:"pipeline"`

	// Learner tunes the online logistic regression
	Learner LearnerConfig `yaml:"learner" json:"learner" mapstructure:"learner"`

	// Evaluation controls cross-validation and learning curves
	Evaluation EvaluationConfig `yaml:"evaluation" json:"evaluation" mapstructure:"evaluation"`

	Logging LoggingConfig `yaml:"logging" json:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
}

// DataConfig locates datasets and artifacts.
type DataConfig struct {
	// RawTrain is the raw training export
	RawTrain string `yaml:"raw_train" json:"raw_train" mapstructure:"raw_train"`
	// RawTest is the raw test export whose head is the sample id
	RawTest string `yaml:"raw_test" json:"raw_test" mapstructure:"raw_test"`
	// SparseTrain is the encoded training set
	SparseTrain string `yaml:"sparse_train" json:"sparse_train" mapstructure:"sparse_train"`
	// SparseTest is the encoded test set
	SparseTest string `yaml:"sparse_test" json:"sparse_test" mapstructure:"sparse_test"`
	// Pipeline is the fitted pipeline artifact
	Pipeline string `yaml:"pipeline" json:"pipeline" mapstructure:"pipeline"`
	// Model is the fitted model artifact
	Model string `yaml:"model" json:"model" mapstructure:"model"`
	// Submission is the CSV produced from the test set
	Submission string `yaml:"submission" json:"submission" mapstructure:"submission"`
	// Categories is a CSV with category_id, level and parent_category_id columns
	Categories string `yaml:"categories" json:"categories" mapstructure:"categories"`
	// CategoriesDSN loads the category table from Postgres instead of a CSV
	CategoriesDSN string `yaml:"categories_dsn" json:"categories_dsn" mapstructure:"categories_dsn"`
	// CategoriesQuery selects id, level and parent id from the warehouse
	CategoriesQuery string `yaml:"categories_query" json:"categories_query" mapstructure:"categories_query"`
	// Compression forces an algorithm; empty means detect from the extension
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
	// BufferSize is the longest accepted line in bytes
	BufferSize int `yaml:"buffer_size" json:"buffer_size" mapstructure:"buffer_size"`
}

// PipelineConfig declares the feature agents.
type PipelineConfig struct {
	Passes []PassConfig `yaml:"passes" json:"passes" mapstructure:"passes"`
}

// PassConfig is one group of agents fitted during the same traversal.
type PassConfig struct {
	Name   string      `yaml:"name" json:"name" mapstructure:"name"`
	Agents []AgentSpec `yaml:"agents" json:"agents" mapstructure:"agents"`
}

// AgentSpec names an agent kind and its parameters.
type AgentSpec struct {
	Kind     string                 `yaml:"kind" json:"kind" mapstructure:"kind"`
	Disabled bool                   `yaml:"disabled,omitempty" json:"disabled,omitempty" mapstructure:"disabled"`
	Params   map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty" mapstructure:"params"`
}

// LearnerConfig tunes the online logistic regression.
type LearnerConfig struct {
	// PriorStrength is the constant in the per-feature rate 1/(prior + sqrt(updates))
	PriorStrength float64 `yaml:"prior_strength" json:"prior_strength" mapstructure:"prior_strength"`
	// CTRPrior smooths the online click-through rates: clicks/(impressions + prior)
	CTRPrior float64 `yaml:"ctr_prior" json:"ctr_prior" mapstructure:"ctr_prior"`
	// L1 and L2 penalties; both are disabled by default
	L1 float64 `yaml:"l1" json:"l1" mapstructure:"l1"`
	L2 float64 `yaml:"l2" json:"l2" mapstructure:"l2"`
	// OnlineFeatures turns the history and running CTR features on
	OnlineFeatures bool `yaml:"online_features" json:"online_features" mapstructure:"online_features"`
	// AdIDField and UserIDField name the identifier triplets used as keys
	AdIDField   string `yaml:"ad_id_field" json:"ad_id_field" mapstructure:"ad_id_field"`
	UserIDField string `yaml:"user_id_field" json:"user_id_field" mapstructure:"user_id_field"`
	// HistoryCapacity is the number of distinct (user, ad) pairs each history set is sized for
	HistoryCapacity uint `yaml:"history_capacity" json:"history_capacity" mapstructure:"history_capacity"`
	// HistoryFalsePositiveRate is the accepted false positive rate of the history sets
	HistoryFalsePositiveRate float64 `yaml:"history_false_positive_rate" json:"history_false_positive_rate" mapstructure:"history_false_positive_rate"`
	// ProgressEvery logs progress every N records; 0 disables progress logs
	ProgressEvery int `yaml:"progress_every" json:"progress_every" mapstructure:"progress_every"`
}

// EvaluationConfig controls cross-validation and learning curves.
type EvaluationConfig struct {
	Folds int `yaml:"folds" json:"folds" mapstructure:"folds"`
	// CurveSizes are the training prefix sizes of the learning curve
	CurveSizes []int `yaml:"curve_sizes" json:"curve_sizes" mapstructure:"curve_sizes"`
	// HoldoutNth reserves every n-th record for the learning-curve holdout
	HoldoutNth int `yaml:"holdout_nth" json:"holdout_nth" mapstructure:"holdout_nth"`
	// Epsilon clips predictions before taking logs
	Epsilon float64 `yaml:"epsilon" json:"epsilon" mapstructure:"epsilon"`
	// Parallelism is the number of folds trained at once
	Parallelism int `yaml:"parallelism" json:"parallelism" mapstructure:"parallelism"`
	// TopFeatures is the number of strongest weights printed after a fit
	TopFeatures int `yaml:"top_features" json:"top_features" mapstructure:"top_features"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	Encoding    string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	Development bool   `yaml:"development" json:"development" mapstructure:"development"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ServiceName string  `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Address string `yaml:"address" json:"address" mapstructure:"address"`
}

// Categorical lists the fields one-hot encoded by the default pipeline.
var Categorical = []string{
	"hour",
	"user_agent_id",
	"user_agent_family_id",
	"user_agent_osid",
	"user_device_id",
	"loc_level",
	"region_id",
	"city_id",
	"search_cat_id",
	"search_cat_level",
	"ad_cat_id",
	"ad_parameter",
	"price_percentile",
	"hist_ctr_percentile",
}

// Default returns the reference configuration.
func Default() *Config {
	categorical := make([]interface{}, len(Categorical))
	for i, f := range Categorical {
		categorical[i] = f
	}

	return &Config{
		Name: "ctrflow",
		Data: DataConfig{
			RawTrain:        "data/train.raw.jsonl.gz",
			RawTest:         "data/test.raw.jsonl.gz",
			SparseTrain:     "data/train.sparse.jsonl.gz",
			SparseTest:      "data/test.sparse.jsonl.gz",
			Pipeline:        "data/pipeline.json",
			Model:           "data/model.json",
			Submission:      "data/submission.csv",
			Categories:      "data/categories.csv",
			CategoriesQuery: "SELECT category_id, level, parent_category_id FROM category",
			BufferSize:      16 * 1024 * 1024,
		},
		Pipeline: PipelineConfig{
			Passes: []PassConfig{
				{
					Name: "statistics",
					Agents: []AgentSpec{
						{Kind: "ctr", Params: map[string]interface{}{
							"prefix": "ad", "impressions": "ad_n_impressions", "clicks": "ad_n_clicks",
						}},
						{Kind: "ctr", Params: map[string]interface{}{
							"prefix": "user", "impressions": "user_n_impressions", "clicks": "user_n_clicks",
						}},
						{Kind: "category", Params: map[string]interface{}{
							"search_field": "search_cat_id", "ad_field": "ad_cat_id",
						}},
						{Kind: "quantile", Params: map[string]interface{}{
							"field": "price", "buckets": 20,
						}},
						{Kind: "ad_params", Params: map[string]interface{}{
							"field": "ad_params", "output": "ad_parameter",
						}},
						{Kind: "text", Disabled: true, Params: map[string]interface{}{
							"query_field": "search_query", "title_field": "ad_title",
						}},
					},
				},
				{
					Name: "encoding",
					Agents: []AgentSpec{
						{Kind: "onehot", Params: map[string]interface{}{
							"fields": categorical, "unknown": "drop",
						}},
					},
				},
			},
		},
		Learner: LearnerConfig{
			PriorStrength:            10,
			CTRPrior:                 10,
			OnlineFeatures:           true,
			AdIDField:                "ad_id",
			UserIDField:              "user_id",
			HistoryCapacity:          10_000_000,
			HistoryFalsePositiveRate: 0.001,
			ProgressEvery:            100_000,
		},
		Evaluation: EvaluationConfig{
			Folds:       5,
			CurveSizes:  []int{1_000, 10_000, 100_000, 1_000_000},
			HoldoutNth:  5,
			Epsilon:     1e-9,
			Parallelism: 1,
			TopFeatures: 10,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Tracing: TracingConfig{
			ServiceName: "ctrflow",
			SampleRate:  1,
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if len(c.Pipeline.Passes) == 0 {
		return errors.New(errors.ErrorTypeConfig, "pipeline needs at least one pass")
	}
	for i, pass := range c.Pipeline.Passes {
		if len(pass.Agents) == 0 {
			return errors.Newf(errors.ErrorTypeConfig, "pipeline pass %d has no agents", i)
		}
		for j, a := range pass.Agents {
			if a.Kind == "" {
				return errors.Newf(errors.ErrorTypeConfig, "agent %d of pass %d has no kind", j, i)
			}
		}
	}

	l := c.Learner
	switch {
	case l.PriorStrength <= 0:
		return errors.New(errors.ErrorTypeConfig, "learner.prior_strength must be positive")
	case l.CTRPrior < 0:
		return errors.New(errors.ErrorTypeConfig, "learner.ctr_prior must not be negative")
	case l.L1 < 0 || l.L2 < 0:
		return errors.New(errors.ErrorTypeConfig, "learner.l1 and learner.l2 must not be negative")
	case l.OnlineFeatures && l.HistoryCapacity == 0:
		return errors.New(errors.ErrorTypeConfig, "learner.history_capacity must be positive")
	case l.OnlineFeatures && (l.HistoryFalsePositiveRate <= 0 || l.HistoryFalsePositiveRate >= 1):
		return errors.New(errors.ErrorTypeConfig, "learner.history_false_positive_rate must be in (0, 1)")
	case l.OnlineFeatures && (l.AdIDField == "" || l.UserIDField == ""):
		return errors.New(errors.ErrorTypeConfig, "learner.ad_id_field and learner.user_id_field are required")
	}

	e := c.Evaluation
	switch {
	case e.Folds < 2:
		return errors.Newf(errors.ErrorTypeConfig, "evaluation.folds must be at least 2, got %d", e.Folds)
	case e.HoldoutNth < 2:
		return errors.Newf(errors.ErrorTypeConfig, "evaluation.holdout_nth must be at least 2, got %d", e.HoldoutNth)
	case e.Epsilon <= 0 || e.Epsilon >= 0.5:
		return errors.New(errors.ErrorTypeConfig, "evaluation.epsilon must be in (0, 0.5)")
	case e.Parallelism < 1:
		return errors.New(errors.ErrorTypeConfig, "evaluation.parallelism must be at least 1")
	}
	for _, size := range e.CurveSizes {
		if size <= 0 {
			return errors.Newf(errors.ErrorTypeConfig, "evaluation.curve_sizes must be positive, got %d", size)
		}
	}

	if c.Tracing.Enabled && (c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1) {
		return errors.New(errors.ErrorTypeConfig, "tracing.sample_rate must be in [0, 1]")
	}
	return nil
}
