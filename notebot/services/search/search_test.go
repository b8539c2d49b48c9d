package search

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notebot/notebot/services/llm"
	"notebot/notebot/sources/db/models"
)

// fakeEmbedder maps exact texts to vectors; unknown texts get the zero vector.
type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   int
	inputs  []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	f.calls++
	f.inputs = texts
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float64{0, 0}
		}
		out[i] = v
	}
	return out, nil
}

func newSearcher(e llm.Embedder, loads *int) *Searcher {
	models := llm.NewRegistry(llm.Loaders{
		Embedder: func(ctx context.Context) (llm.Embedder, error) {
			if loads != nil {
				*loads++
			}
			return e, nil
		},
	})
	return New(models, 0)
}

func notes() []models.Note {
	return []models.Note{
		{ID: 3, Content: "Buy milk and eggs", Tags: "shopping"},
		{ID: 2, Content: "Budget meeting on Friday", Tags: "work, budget"},
		{ID: 1, Content: "Call mom", Tags: "family"},
	}
}

func TestSearchWithoutNotesSkipsEmbedder(t *testing.T) {
	loads := 0
	e := &fakeEmbedder{}
	out := newSearcher(e, &loads).Search(context.Background(), "milk", nil)

	assert.Equal(t, "No notes found.", out)
	assert.Equal(t, 0, loads)
	assert.Equal(t, 0, e.calls)
}

func TestSearchRendersBestMatchesFirst(t *testing.T) {
	e := &fakeEmbedder{vectors: map[string][]float64{
		"groceries":                             {1, 0},
		"Buy milk and eggs shopping":            {1, 0.2},
		"Budget meeting on Friday work, budget": {0, 1},
		"Call mom family":                       {0.6, 0.8},
	}}

	out := newSearcher(e, nil).Search(context.Background(), "groceries", notes())

	assert.Equal(t, 1, e.calls)
	assert.Equal(t, "groceries", e.inputs[0])
	assert.Len(t, e.inputs, 4)

	require.True(t, strings.HasPrefix(out, "Found relevant notes:\n\n"))
	assert.Contains(t, out, "📌 ID: 3 (Score: 0.98)\nContent: Buy milk and eggs...\nTags: shopping\n\n")
	assert.Less(t, strings.Index(out, "ID: 3"), strings.Index(out, "ID: 1"))
	assert.Less(t, strings.Index(out, "ID: 1"), strings.Index(out, "ID: 2"))
}

func TestSearchBelowThreshold(t *testing.T) {
	e := &fakeEmbedder{vectors: map[string][]float64{
		"weather":                    {1, 0},
		"Buy milk and eggs shopping": {0, 1},
	}}
	out := newSearcher(e, nil).Search(context.Background(), "weather", notes()[:1])
	assert.Equal(t, "No relevant notes found for your query.", out)
}

func TestSearchEmbeddingError(t *testing.T) {
	e := &fakeEmbedder{err: errors.New("embedding server unreachable")}
	out := newSearcher(e, nil).Search(context.Background(), "milk", notes())
	assert.Equal(t, "Error during search: embedding server unreachable", out)
}

func TestSearchNonFiniteScoreIsAnError(t *testing.T) {
	e := &fakeEmbedder{vectors: map[string][]float64{
		"groceries":                  {1, 0},
		"Buy milk and eggs shopping": {math.NaN(), 1},
	}}

	out := newSearcher(e, nil).Search(context.Background(), "groceries", notes())

	assert.Equal(t, "Error during search: non-finite similarity for note 3", out)
	assert.NotContains(t, out, "Found relevant notes")
}

func TestRankRejectsInfiniteComponents(t *testing.T) {
	e := &fakeEmbedder{vectors: map[string][]float64{
		"q":               {1, 1},
		"Call mom family": {math.Inf(1), 1},
	}}
	_, err := newSearcher(e, nil).Rank(context.Background(), "q", notes()[2:])
	assert.Error(t, err)
}

type shortEmbedder struct{}

func (shortEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return [][]float64{{1}}, nil
}

func TestSearchVectorCountMismatch(t *testing.T) {
	out := newSearcher(shortEmbedder{}, nil).Search(context.Background(), "milk", notes())
	assert.True(t, strings.HasPrefix(out, "Error during search: "))
}

func TestRankKeepsInputOrderOnTies(t *testing.T) {
	many := []models.Note{
		{ID: 10, Content: "a"}, {ID: 9, Content: "b"}, {ID: 8, Content: "c"}, {ID: 7, Content: "d"},
	}
	e := &fakeEmbedder{vectors: map[string][]float64{
		"q": {1, 1}, "a ": {1, 1}, "b ": {1, 1}, "c ": {1, 1}, "d ": {1, 1},
	}}
	matches, err := newSearcher(e, nil).Rank(context.Background(), "q", many)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, uint(10), matches[0].Note.ID)
	assert.Equal(t, uint(9), matches[1].Note.ID)
	assert.Equal(t, uint(8), matches[2].Note.ID)
}

func TestRenderTruncatesContent(t *testing.T) {
	long := strings.Repeat("x", 250)
	out := Render([]Match{{Note: models.Note{ID: 1, Content: long, Tags: "t"}, Score: 0.5}})
	assert.Equal(t, "Found relevant notes:\n\n📌 ID: 1 (Score: 0.50)\nContent: "+strings.Repeat("x", 100)+"...\nTags: t\n\n", out)
}

func TestCosine(t *testing.T) {
	score, err := Cosine([]float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	score, err = Cosine([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	_, err = Cosine([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
}

func TestCosineBoundedProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("cosine of nonzero vectors lies in [-1, 1]", prop.ForAll(
		func(a, b []float64) bool {
			n := len(a)
			if len(b) < n {
				n = len(b)
			}
			score, err := Cosine(a[:n], b[:n])
			return err == nil && score >= -1-1e-9 && score <= 1+1e-9 && !math.IsNaN(score)
		},
		gen.SliceOfN(8, gen.Float64Range(-100, 100)),
		gen.SliceOfN(8, gen.Float64Range(-100, 100)),
	))

	properties.TestingRun(t)
}
