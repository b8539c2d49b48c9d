// Package search ranks a user's notes against a free-text query by
// embedding cosine similarity.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"notebot/notebot/services/llm"
	"notebot/notebot/sources/db/models"
	"notebot/notebot/utils/logging"
	"notebot/notebot/utils/metrics"
)

const (
	TopK      = 3
	Threshold = 0.3

	previewLength = 100

	NoNotesMessage     = "No notes found."
	NoRelevantMessage  = "No relevant notes found for your query."
	ResultsHeader      = "Found relevant notes:\n\n"
	errorMessageFormat = "Error during search: %v"
)

type Match struct {
	Note  models.Note
	Score float64
}

type Searcher struct {
	models  *llm.Registry
	timeout time.Duration
}

func New(models *llm.Registry, timeout time.Duration) *Searcher {
	return &Searcher{models: models, timeout: timeout}
}

// Search renders the best matches for query among notes. It never fails;
// embedding problems come back as an error message.
func (s *Searcher) Search(ctx context.Context, query string, notes []models.Note) string {
	if len(notes) == 0 {
		return NoNotesMessage
	}
	defer logging.LogDuration(ctx, "search")()

	matches, err := s.Rank(ctx, query, notes)
	if err != nil {
		logging.ErrorLogger.Error("Error during search", zap.Error(err))
		metrics.PipelineResults.WithLabelValues("search", "error").Inc()
		return fmt.Sprintf(errorMessageFormat, err)
	}
	if len(matches) == 0 || matches[0].Score < Threshold {
		metrics.PipelineResults.WithLabelValues("search", "no_match").Inc()
		return NoRelevantMessage
	}
	metrics.PipelineResults.WithLabelValues("search", "ok").Inc()
	return Render(matches)
}

// Rank embeds query and notes in one batch and returns at most TopK matches,
// best first. Equal scores keep input order.
func (s *Searcher) Rank(ctx context.Context, query string, notes []models.Note) ([]Match, error) {
	embedder, err := s.models.Embedder(ctx)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(notes)+1)
	texts = append(texts, query)
	for _, n := range notes {
		texts = append(texts, n.Content+" "+n.Tags)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}

	matches := make([]Match, len(notes))
	for i, n := range notes {
		score, err := Cosine(vectors[0], vectors[i+1])
		if err != nil {
			return nil, err
		}
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, fmt.Errorf("non-finite similarity for note %d", n.ID)
		}
		matches[i] = Match{Note: n, Score: score}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > TopK {
		matches = matches[:TopK]
	}
	return matches, nil
}

// Cosine is 0 when either vector has zero length.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimensions differ: %d and %d", len(a), len(b))
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return floats.Dot(a, b) / (na * nb), nil
}

func Render(matches []Match) string {
	var b strings.Builder
	b.WriteString(ResultsHeader)
	for _, m := range matches {
		fmt.Fprintf(&b, "📌 ID: %d (Score: %.2f)\n", m.Note.ID, m.Score)
		fmt.Fprintf(&b, "Content: %s...\n", preview(m.Note.Content))
		fmt.Fprintf(&b, "Tags: %s\n\n", m.Note.Tags)
	}
	return b.String()
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) > previewLength {
		return string(runes[:previewLength])
	}
	return content
}
