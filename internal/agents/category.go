package agents

import (
	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/models"
)

// KindCategory compares the search category with the ad category.
const KindCategory = "category"

func init() {
	mustRegister(KindCategory, func(deps Deps) (Agent, error) {
		if deps.Categories == nil {
			return nil, errors.New(errors.ErrorTypeConfig, "category: a category lookup is required")
		}
		return &CategoryAgreement{
			SearchField: "search_cat_id",
			AdField:     "ad_cat_id",
			lookup:      deps.Categories,
		}, nil
	})
}

// CategoryAgreement emits search_ad_same_cat when the search and the ad
// share a category and search_ad_same_parent_cat when their categories
// share a parent. Nothing is emitted when either category is unknown. The
// category ids are removed from the row unless KeepIDs is set.
type CategoryAgreement struct {
	Base

	SearchField string `json:"search_field"`
	AdField     string `json:"ad_field"`
	KeepIDs     bool   `json:"keep_ids"`

	lookup CategoryLookup
}

// Kind implements Agent.
func (c *CategoryAgreement) Kind() string { return KindCategory }

// Validate implements Agent.
func (c *CategoryAgreement) Validate() error {
	if c.SearchField == "" || c.AdField == "" {
		return errors.New(errors.ErrorTypeConfig, "category: search_field and ad_field are required")
	}
	return nil
}

// ReplacedFields implements Agent.
func (c *CategoryAgreement) ReplacedFields() []string {
	if c.KeepIDs {
		return nil
	}
	return []string{c.SearchField, c.AdField}
}

// Transform implements Agent.
func (c *CategoryAgreement) Transform(row models.Row) models.Row {
	search, ok := c.resolve(row, c.SearchField)
	if !ok {
		return row
	}
	ad, ok := c.resolve(row, c.AdField)
	if !ok {
		return row
	}

	if search.ID == ad.ID {
		row = row.Append("search_ad_same_cat", int64(1))
	}
	if search.ParentID == ad.ParentID {
		row = row.Append("search_ad_same_parent_cat", int64(1))
	}
	return row
}

func (c *CategoryAgreement) resolve(row models.Row, field string) (Category, bool) {
	v, ok := row.Get(field)
	if !ok {
		return Category{}, false
	}
	id, ok := models.Int(v)
	if !ok {
		return Category{}, false
	}
	return c.lookup.Lookup(id)
}
