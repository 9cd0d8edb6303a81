package pipeline

import (
	"bytes"
	"context"
	"iter"
	"path/filepath"
	"testing"

	"github.com/ajitpratap0/ctrflow/internal/agents"
	"github.com/ajitpratap0/ctrflow/pkg/config"
	"github.com/ajitpratap0/ctrflow/pkg/dataset"
	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/models"
	"github.com/ajitpratap0/ctrflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tagger records what it observes and tags every row it transforms.
type tagger struct {
	agents.Base
	name     string
	observed [][]string
	prepared int
}

func (p *tagger) Kind() string { return "tagger" }

func (p *tagger) Prepare() { p.prepared++ }

func (p *tagger) Observe(row models.Row) { p.observed = append(p.observed, row.Names()) }

func (p *tagger) Transform(row models.Row) models.Row { return row.Append(p.name, int64(1)) }

func (p *tagger) ReplacedFields() []string { return []string{"secret"} }

func rowsOf(rows ...models.Row) RowFactory {
	return func() iter.Seq2[models.Row, error] {
		return func(yield func(models.Row, error) bool) {
			for _, r := range rows {
				if !yield(r.Clone(), nil) {
					return
				}
			}
		}
	}
}

func catalog() agents.Catalog {
	return agents.NewCatalog([]agents.Category{
		{ID: 1, Level: 1},
		{ID: 2, Level: 2, ParentID: 1},
		{ID: 3, Level: 2, ParentID: 1},
		{ID: 4, Level: 2, ParentID: 9},
	})
}

func TestFitPassOrdering(t *testing.T) {
	first := &tagger{name: "first"}
	sibling := &tagger{name: "sibling"}
	second := &tagger{name: "second"}

	p, err := New([][]agents.Agent{{first, sibling}, {second}}, WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)

	row := models.Row{{Name: "a", Value: 1}, {Name: "secret", Value: 2}}
	require.NoError(t, p.Fit(testutil.TestContext(t), rowsOf(row, row)))

	assert.Equal(t, 1, first.prepared)
	assert.Equal(t, 1, second.prepared)
	assert.Equal(t, [][]string{{"a", "secret"}, {"a", "secret"}}, first.observed, "pass 1 sees raw rows")
	assert.Equal(t, first.observed, sibling.observed, "agents of a pass do not see each other")
	assert.Equal(t, [][]string{{"a", "first", "sibling"}, {"a", "first", "sibling"}}, second.observed,
		"pass 2 sees pass 1 output without replaced fields")

	out, err := p.TransformRow(row.Clone())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "first", "sibling", "second"}, out.Names())
}

func TestTransformBeforeFit(t *testing.T) {
	p, err := New([][]agents.Agent{{&tagger{name: "x"}}})
	require.NoError(t, err)

	_, err = p.TransformRow(models.Row{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	_, err = p.Transform(models.Row{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	assert.True(t, errors.IsType(p.Save(&bytes.Buffer{}), errors.ErrorTypeState))
}

func TestNewRejectsEmptyPasses(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	_, err = New([][]agents.Agent{{}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestFitStopsOnStreamError(t *testing.T) {
	p, err := New([][]agents.Agent{{&tagger{name: "x"}}})
	require.NoError(t, err)

	src := dataset.BytesSource([]byte("[[\"is_click\",0],[\"a\",1]]\n[[\"is_click\",1],\n"))
	raw := dataset.New[models.RawRecord](src, dataset.RawCodec{})

	err = p.Fit(context.Background(), func() iter.Seq2[models.Row, error] { return Rows(raw.All()) })
	require.Error(t, err)
	assert.True(t, errors.HasType(err, errors.ErrorTypeData))
	assert.False(t, p.Fitted())
}

func TestFitHonoursCancellation(t *testing.T) {
	p, err := New([][]agents.Agent{{&tagger{name: "x"}}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.Fit(ctx, rowsOf(models.Row{{Name: "a", Value: 1}}))
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
}

func TestFromConfigSkipsDisabled(t *testing.T) {
	cfg := config.PipelineConfig{Passes: []config.PassConfig{
		{Name: "off", Agents: []config.AgentSpec{{Kind: agents.KindText, Disabled: true}}},
		{Name: "encoding", Agents: []config.AgentSpec{{Kind: agents.KindOneHot, Params: map[string]interface{}{
			"fields": []interface{}{"hour"},
		}}}},
	}}
	p, err := FromConfig(cfg, agents.Deps{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Passes())

	cfg.Passes[1].Agents[0].Kind = "missing"
	_, err = FromConfig(cfg, agents.Deps{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func fitDefault(t *testing.T, path string) *Pipeline {
	t.Helper()
	p, err := FromConfig(config.Default().Pipeline, agents.Deps{Categories: catalog()},
		WithLogger(testutil.TestLogger(t)), WithProgressEvery(50))
	require.NoError(t, err)

	raw := dataset.OpenRaw(path)
	require.NoError(t, p.Fit(testutil.TestContext(t), func() iter.Seq2[models.Row, error] {
		return Rows(raw.All())
	}))
	return p
}

func TestDefaultPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	rawPath := testutil.WriteRaw(t, filepath.Join(dir, "train.raw.jsonl.gz"), testutil.ClickLog(120))
	p := fitDefault(t, rawPath)

	sparsePath := filepath.Join(dir, "train.sparse.jsonl.zst")
	w, err := dataset.CreateSparse(sparsePath)
	require.NoError(t, err)
	n, err := p.TransformDataset(testutil.TestContext(t), dataset.OpenRaw(rawPath), w)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, 120, n)

	count := 0
	for ex, err := range dataset.OpenSparse(sparsePath).All() {
		require.NoError(t, err)
		assert.Equal(t, "is_click", ex.Target.Field)
		assert.Equal(t, 0, ex.Target.Index)

		fields := map[string]bool{}
		for _, f := range ex.Features {
			fields[f.Field] = true
		}
		for _, replaced := range []string{"price", "ad_n_impressions", "ad_n_clicks", "user_n_impressions", "ad_params", "search_cat_id", "ad_cat_id"} {
			assert.False(t, fields[replaced], replaced)
		}
		for _, derived := range []string{"ad_id", "user_id", "hour", "price_percentile", "ad_ctr", "user_ctr_pow3", "new_user", "ad_parameter"} {
			assert.True(t, fields[derived], derived)
		}
		count++
	}
	assert.Equal(t, 120, count)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rawPath := testutil.WriteRaw(t, filepath.Join(dir, "train.raw.jsonl"), testutil.ClickLog(60))
	p := fitDefault(t, rawPath)

	artifactPath := filepath.Join(dir, "pipeline.json")
	require.NoError(t, p.SaveFile(artifactPath))

	loaded, err := LoadFile(artifactPath, agents.Deps{Categories: catalog()})
	require.NoError(t, err)
	require.True(t, loaded.Fitted())

	for rec, err := range dataset.OpenRaw(rawPath).All() {
		require.NoError(t, err)
		want, err := p.Transform(rec.Fields.Clone())
		require.NoError(t, err)
		got, err := loaded.Transform(rec.Fields.Clone())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = Load(bytes.NewBufferString(`{"version":7,"passes":[]}`), agents.Deps{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	_, err = LoadFile(filepath.Join(dir, "absent.json"), agents.Deps{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestTransformDatasetRejectsTextHead(t *testing.T) {
	p, err := New([][]agents.Agent{{&tagger{name: "x"}}})
	require.NoError(t, err)
	require.NoError(t, p.Fit(context.Background(), rowsOf(models.Row{})))

	raw := dataset.New[models.RawRecord](dataset.BytesSource([]byte(`[["id","abc"],["a",1]]`+"\n")), dataset.RawCodec{})
	w, err := dataset.NewWriter[models.Example](&bytes.Buffer{}, dataset.SparseCodec{})
	require.NoError(t, err)
	_, err = p.TransformDataset(context.Background(), raw, w)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}
