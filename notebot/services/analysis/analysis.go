package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"notebot/notebot/prompts"
	"notebot/notebot/services/llm"
	"notebot/notebot/utils/logging"
	"notebot/notebot/utils/metrics"
)

const (
	MaxTokens   = 150
	Temperature = 0.7

	MaxInput  = 1500
	MaxOutput = 4000

	NoNotesMessage     = "No notes to analyze."
	errorMessageFormat = "Error during analysis: %v"
)

type Analyzer struct {
	models  *llm.Registry
	prompts *prompts.Templates
	timeout time.Duration
}

func New(models *llm.Registry, templates *prompts.Templates, timeout time.Duration) *Analyzer {
	return &Analyzer{models: models, prompts: templates, timeout: timeout}
}

// Analyze asks the model for main topics and suggestions over notesText.
// The reply is at most MaxOutput characters plus an ellipsis. It never fails.
func (a *Analyzer) Analyze(ctx context.Context, notesText string) string {
	if notesText == "" {
		return NoNotesMessage
	}
	defer logging.LogDuration(ctx, "analyze")()

	reply, err := a.generate(ctx, truncate(notesText, MaxInput))
	if err != nil {
		logging.ErrorLogger.Error("Error during analysis", zap.Error(err))
		metrics.PipelineResults.WithLabelValues("analysis", "error").Inc()
		return fmt.Sprintf(errorMessageFormat, err)
	}
	metrics.PipelineResults.WithLabelValues("analysis", "ok").Inc()

	reply = strings.TrimSpace(reply)
	if len([]rune(reply)) > MaxOutput {
		reply = truncate(reply, MaxOutput) + "..."
	}
	return reply
}

func (a *Analyzer) generate(ctx context.Context, notes string) (string, error) {
	gen, err := a.models.Generator(ctx)
	if err != nil {
		return "", err
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return gen.Generate(ctx, a.prompts.AnalysisPrompt(notes), llm.GenerateOptions{
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
		Sample:      true,
	})
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
