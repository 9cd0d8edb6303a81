package agents

import (
	"math"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/models"
)

// KindCTR derives smoothed click-through rates from impression counters.
const KindCTR = "ctr"

// DefaultCTRPrior is the additive smoothing weight of click-through rates.
const DefaultCTRPrior = 10

func init() {
	mustRegister(KindCTR, func(Deps) (Agent, error) {
		return &CTR{Prior: DefaultCTRPrior}, nil
	})
}

// CTR replaces an entity's impression and click counters with its smoothed
// click-through rate clicks/(impressions+prior), three shapes of it and a
// flag for entities never shown before. Entities with no impressions get
// the average rate observed during the fit pass.
type CTR struct {
	Base

	Prefix      string  `json:"prefix"`
	Impressions string  `json:"impressions"`
	Clicks      string  `json:"clicks"`
	Prior       float64 `json:"prior"`

	Average float64 `json:"average"`

	observed int
	accum    float64
}

// Kind implements Agent.
func (c *CTR) Kind() string { return KindCTR }

// Validate implements Agent.
func (c *CTR) Validate() error {
	if c.Prefix == "" || c.Impressions == "" || c.Clicks == "" {
		return errors.New(errors.ErrorTypeConfig, "ctr: prefix, impressions and clicks are required")
	}
	if c.Prior < 0 {
		return errors.New(errors.ErrorTypeConfig, "ctr: prior must not be negative")
	}
	return nil
}

// Rate returns the smoothed click-through rate.
func (c *CTR) Rate(impressions, clicks float64) float64 {
	return clicks / (impressions + c.Prior)
}

// Prepare implements Agent.
func (c *CTR) Prepare() {
	c.observed = 0
	c.accum = 0
}

// Observe implements Agent.
func (c *CTR) Observe(row models.Row) {
	impressions, clicks := c.counters(row)
	if impressions == 0 {
		return
	}
	c.observed++
	c.accum += c.Rate(impressions, clicks)
}

// Finalize implements Agent. A pass without a single shown entity leaves
// the average undefined.
func (c *CTR) Finalize() error {
	if c.observed == 0 {
		return errors.Newf(errors.ErrorTypeConfig,
			"ctr: no %s entity with impressions observed, average rate is undefined", c.Prefix)
	}
	c.Average = c.accum / float64(c.observed)
	return nil
}

// Transform implements Agent.
func (c *CTR) Transform(row models.Row) models.Row {
	impressions, clicks := c.counters(row)

	ctr := c.Average
	isNew := int64(1)
	if impressions > 0 {
		ctr = c.Rate(impressions, clicks)
		isNew = 0
	}

	return append(row,
		models.Field{Name: c.Prefix + "_ctr", Value: ctr},
		models.Field{Name: c.Prefix + "_ctr_root", Value: math.Sqrt(ctr)},
		models.Field{Name: c.Prefix + "_ctr_pow2", Value: ctr * ctr},
		models.Field{Name: c.Prefix + "_ctr_pow3", Value: ctr * ctr * ctr},
		models.Field{Name: "new_" + c.Prefix, Value: isNew},
	)
}

// ReplacedFields implements Agent.
func (c *CTR) ReplacedFields() []string { return []string{c.Impressions, c.Clicks} }

// counters reads both counters; missing values count as zero.
func (c *CTR) counters(row models.Row) (impressions, clicks float64) {
	if v, ok := row.Get(c.Impressions); ok {
		impressions, _ = models.Float(v)
	}
	if v, ok := row.Get(c.Clicks); ok {
		clicks, _ = models.Float(v)
	}
	return impressions, clicks
}
