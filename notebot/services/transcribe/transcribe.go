package transcribe

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"notebot/notebot/services/llm"
	"notebot/notebot/utils/logging"
	"notebot/notebot/utils/metrics"
)

type Transcriber struct {
	models   *llm.Registry
	beamSize int
	timeout  time.Duration
}

func New(models *llm.Registry, beamSize int, timeout time.Duration) *Transcriber {
	if beamSize <= 0 {
		beamSize = 5
	}
	return &Transcriber{models: models, beamSize: beamSize, timeout: timeout}
}

// Transcribe returns the recognized text of the audio file at path, segments
// joined with single spaces and trimmed. Any failure, including a missing
// file, is logged and returns "", same as silence.
func (t *Transcriber) Transcribe(ctx context.Context, path string) string {
	defer logging.LogDuration(ctx, "transcribe")()

	recognizer, err := t.models.Recognizer(ctx)
	if err != nil {
		logging.ErrorLogger.Error("Error transcribing audio", zap.Error(err))
		metrics.PipelineResults.WithLabelValues("transcribe", "error").Inc()
		return ""
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	segments, err := recognizer.Transcribe(ctx, path, t.beamSize)
	if err != nil {
		logging.ErrorLogger.Error("Error transcribing audio", zap.String("path", path), zap.Error(err))
		metrics.PipelineResults.WithLabelValues("transcribe", "error").Inc()
		return ""
	}

	text := JoinSegments(segments)
	if text == "" {
		metrics.PipelineResults.WithLabelValues("transcribe", "empty").Inc()
	} else {
		metrics.PipelineResults.WithLabelValues("transcribe", "ok").Inc()
	}
	return text
}

func JoinSegments(segments []llm.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
