// Package enrich derives a one-sentence summary and up to three tags from note
// text with the generative model.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"notebot/notebot/prompts"
	"notebot/notebot/services/llm"
	"notebot/notebot/utils/jsonutils"
	"notebot/notebot/utils/logging"
	"notebot/notebot/utils/metrics"
)

const (
	MaxTokens   = 128
	Temperature = 0.3

	MaxTags         = 3
	FallbackSummary = 100 // characters of input kept when enrichment degrades
)

type Result struct {
	Summary string
	Tags    []string
	// Degraded is set when the model could not be used and Summary is a prefix of the input.
	Degraded bool
}

// TagString joins tags the way they are stored.
func (r Result) TagString() string {
	return strings.Join(r.Tags, ", ")
}

type Enricher struct {
	models  *llm.Registry
	prompts *prompts.Templates
	timeout time.Duration
}

func New(models *llm.Registry, templates *prompts.Templates, timeout time.Duration) *Enricher {
	return &Enricher{models: models, prompts: templates, timeout: timeout}
}

// Enrich never fails: any model or parse problem yields Degraded(text).
func (e *Enricher) Enrich(ctx context.Context, text string) (result Result) {
	defer logging.LogDuration(ctx, "enrich")()
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorLogger.Error("Enrichment panic", zap.Any("recover", r))
			result = Degraded(text)
		}
		outcome := "ok"
		if result.Degraded {
			outcome = "degraded"
		}
		metrics.PipelineResults.WithLabelValues("enrich", outcome).Inc()
	}()

	gen, err := e.models.Generator(ctx)
	if err != nil {
		logging.ErrorLogger.Error("Error in enrichment", zap.Error(err))
		return Degraded(text)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	reply, err := gen.Generate(ctx, e.prompts.EnrichmentPrompt(text), llm.GenerateOptions{
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
		Sample:      true,
	})
	if err != nil {
		logging.ErrorLogger.Error("Error in enrichment", zap.Error(err))
		return Degraded(text)
	}

	parsed, err := Parse(reply)
	if err != nil {
		logging.AppLogger.Warn("Malformed enrichment reply", zap.Error(err), zap.String("reply", reply))
		return Degraded(text)
	}
	return parsed
}

// Degraded is the fallback result: the first FallbackSummary characters of text and no tags.
func Degraded(text string) Result {
	runes := []rune(text)
	if len(runes) > FallbackSummary {
		runes = runes[:FallbackSummary]
	}
	return Result{Summary: string(runes), Tags: []string{}, Degraded: true}
}

// Parse reads {"summary": string, "tags": [string] | "a, b"} from the first
// JSON object in reply.
func Parse(reply string) (Result, error) {
	fragment, ok := jsonutils.ExtractJSON(reply)
	if !ok {
		return Result{}, fmt.Errorf("no JSON object in reply")
	}

	summary := gjson.Get(fragment, "summary")
	if summary.Type != gjson.String {
		return Result{}, fmt.Errorf("summary missing or not a string")
	}

	tags := []string{}
	add := func(tag string) {
		tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag != "" && len(tags) < MaxTags {
			tags = append(tags, tag)
		}
	}
	raw := gjson.Get(fragment, "tags")
	switch {
	case raw.IsArray():
		for _, t := range raw.Array() {
			if t.Type == gjson.String || t.Type == gjson.Number {
				add(t.String())
			}
		}
	case raw.Type == gjson.String:
		for _, t := range strings.Split(raw.String(), ",") {
			add(t)
		}
	case !raw.Exists(), raw.Type == gjson.Null:
	default:
		return Result{}, fmt.Errorf("tags has unexpected type %s", raw.Type)
	}

	return Result{Summary: strings.TrimSpace(summary.String()), Tags: tags}, nil
}
