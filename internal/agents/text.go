package agents

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/models"
	porterstemmer "github.com/kiteco/go-porterstemmer"
)

// KindText compares a search query with an ad title.
const KindText = "text"

func init() {
	mustRegister(KindText, func(deps Deps) (Agent, error) {
		lemmatizer := deps.Lemmatizer
		if lemmatizer == nil {
			lemmatizer = PorterStemmer{}
		}
		return &TextSimilarity{
			QueryField: "search_query",
			TitleField: "ad_title",
			lemmatizer: lemmatizer,
		}, nil
	})
}

// Lemmatizer reduces a lower-case word to its base form.
type Lemmatizer interface {
	Lemma(word string) string
}

// PorterStemmer is the default Lemmatizer.
type PorterStemmer struct{}

// Lemma implements Lemmatizer.
func (PorterStemmer) Lemma(word string) string {
	return porterstemmer.StemString(word)
}

var numberPattern = regexp.MustCompile(`\d+`)

// TextSimilarity replaces a query and a title with three similarity
// features, all relative to the query:
//
//   - query_common_tokens: share of distinct query tokens found in the title
//   - query_common_numbers: share of distinct query numbers found in the title
//   - query_lcs: longest common substring length over the query length
//
// Tokens are lower-cased, stripped of punctuation and lemmatised; numbers
// and substrings are searched in the tokens joined without separators. Both
// text fields are removed even when the query is missing, in which case
// nothing is emitted.
type TextSimilarity struct {
	Base

	QueryField string `json:"query_field"`
	TitleField string `json:"title_field"`

	lemmatizer Lemmatizer
}

// Kind implements Agent.
func (t *TextSimilarity) Kind() string { return KindText }

// Validate implements Agent.
func (t *TextSimilarity) Validate() error {
	if t.QueryField == "" || t.TitleField == "" {
		return errors.New(errors.ErrorTypeConfig, "text: query_field and title_field are required")
	}
	return nil
}

// Transform implements Agent.
func (t *TextSimilarity) Transform(row models.Row) models.Row {
	qv, ok := row.Get(t.QueryField)
	query, isText := qv.(string)
	if !ok || !isText {
		return row
	}
	title, _ := row.Get(t.TitleField)
	titleText, _ := title.(string)

	queryTokens := t.tokenize(query)
	titleTokens := t.tokenize(titleText)
	queryJoined := strings.Join(queryTokens, "")
	titleJoined := strings.Join(titleTokens, "")

	return append(row,
		models.Field{Name: "query_common_tokens", Value: commonShare(queryTokens, titleTokens)},
		models.Field{Name: "query_common_numbers", Value: commonShare(
			numberPattern.FindAllString(queryJoined, -1),
			numberPattern.FindAllString(titleJoined, -1),
		)},
		models.Field{Name: "query_lcs", Value: lcsShare(queryJoined, titleJoined)},
	)
}

// ReplacedFields implements Agent.
func (t *TextSimilarity) ReplacedFields() []string { return []string{t.QueryField, t.TitleField} }

func (t *TextSimilarity) tokenize(s string) []string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)

	words := strings.Fields(s)
	for i, w := range words {
		words[i] = t.lemmatizer.Lemma(w)
	}
	return words
}

// commonShare returns the share of distinct values of a also present in b.
func commonShare(a, b []string) float64 {
	if len(a) == 0 {
		return 0
	}
	inB := make(map[string]struct{}, len(b))
	for _, s := range b {
		inB[s] = struct{}{}
	}
	distinct := make(map[string]struct{}, len(a))
	common := 0
	for _, s := range a {
		if _, dup := distinct[s]; dup {
			continue
		}
		distinct[s] = struct{}{}
		if _, ok := inB[s]; ok {
			common++
		}
	}
	return float64(common) / float64(len(distinct))
}

// lcsShare returns the longest common substring length of a and b over the
// length of a, both counted in runes.
func lcsShare(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return 0
	}
	return float64(LongestCommonSubstring(ra, rb)) / float64(len(ra))
}

// LongestCommonSubstring returns the length of the longest run of runes
// shared by a and b.
func LongestCommonSubstring(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return best
}
