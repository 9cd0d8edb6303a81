package learner

import (
	"strconv"

	"github.com/ajitpratap0/ctrflow/pkg/config"
	"github.com/ajitpratap0/ctrflow/pkg/membership"
	"github.com/ajitpratap0/ctrflow/pkg/models"
)

// Names of the features derived while fitting.
const (
	FeatureClicked = "user_clicked_ad"
	FeatureIgnored = "user_ignored_ad"
	FeatureAdCTR   = "ad_online_ctr"
	FeatureUserCTR = "user_online_ctr"
)

// tally counts the impressions and clicks of one entity seen so far.
type tally struct {
	impressions float64
	clicks      float64
}

// history holds the temporally causal state behind the online features:
// the (user, ad) pairs seen with and without a click and the running
// counters of every ad and user. A record only reads state written by the
// records before it.
type history struct {
	adField   string
	userField string
	prior     float64

	clicked *membership.Set
	ignored *membership.Set
	ads     map[string]*tally
	users   map[string]*tally
}

func newHistory(cfg config.LearnerConfig) (*history, error) {
	clicked, err := membership.New(cfg.HistoryCapacity, cfg.HistoryFalsePositiveRate)
	if err != nil {
		return nil, err
	}
	ignored, err := membership.New(cfg.HistoryCapacity, cfg.HistoryFalsePositiveRate)
	if err != nil {
		return nil, err
	}
	return &history{
		adField:   cfg.AdIDField,
		userField: cfg.UserIDField,
		prior:     cfg.CTRPrior,
		clicked:   clicked,
		ignored:   ignored,
		ads:       make(map[string]*tally),
		users:     make(map[string]*tally),
	}, nil
}

// splitIDs removes the ad and user identifier features, which are only
// ever used as keys, and renders them with identity. A missing identifier
// is returned as "".
func splitIDs(features []models.Feature, adField, userField string) (kept []models.Feature, ad, user string) {
	if adField == "" && userField == "" {
		return features, "", ""
	}
	kept, ids := models.Without(features, adField, userField)
	for _, f := range ids {
		switch f.Field {
		case adField:
			ad = identity(f)
		case userField:
			user = identity(f)
		}
	}
	return kept, ad, user
}

// derive appends the online features computed from the state before this
// record and then records the outcome. A record without both identifiers
// keeps its other features and leaves the state untouched.
func (h *history) derive(kept []models.Feature, ad, user string, label float64) []models.Feature {
	if ad == "" || user == "" {
		return kept
	}

	pair := user + "|" + ad
	switch {
	case h.clicked.MightContainString(pair):
		kept = append(kept, models.Feature{Field: FeatureClicked, Value: 1})
	case h.ignored.MightContainString(pair):
		kept = append(kept, models.Feature{Field: FeatureIgnored, Value: 1})
	}

	adTally := lookup(h.ads, ad)
	userTally := lookup(h.users, user)
	kept = append(kept,
		models.Feature{Field: FeatureAdCTR, Value: h.ctr(adTally)},
		models.Feature{Field: FeatureUserCTR, Value: h.ctr(userTally)},
	)

	if label > 0 {
		h.clicked.InsertString(pair)
		adTally.clicks++
		userTally.clicks++
	} else {
		h.ignored.InsertString(pair)
	}
	adTally.impressions++
	userTally.impressions++
	return kept
}

func (h *history) ctr(t *tally) float64 {
	if t.impressions+h.prior == 0 {
		return 0
	}
	return t.clicks / (t.impressions + h.prior)
}

func lookup(m map[string]*tally, id string) *tally {
	t, ok := m[id]
	if !ok {
		t = &tally{}
		m[id] = t
	}
	return t
}

// identity renders an identifier feature as a key. An encoded identifier
// is told apart by its index, a raw one by its value.
func identity(f models.Feature) string {
	return strconv.Itoa(f.Index) + ":" + strconv.FormatFloat(f.Value, 'g', -1, 64)
}
