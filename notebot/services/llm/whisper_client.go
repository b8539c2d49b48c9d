package llm

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	httputils "notebot/notebot/utils/http"
	"notebot/notebot/utils/logging"
	"notebot/notebot/utils/metrics"
)

// WhisperClient calls a whisper.cpp server, which unlike the OpenAI API
// accepts a beam width.
type WhisperClient struct {
	baseURL  string
	language string
}

func NewWhisperClient(baseURL, language string) *WhisperClient {
	return &WhisperClient{baseURL: baseURL, language: language}
}

func (c *WhisperClient) Transcribe(ctx context.Context, audioPath string, beamSize int) (_ []Segment, err error) {
	defer logging.LogDuration(ctx, "whisper_transcribe")()
	defer metrics.ObserveModel("transcribe", time.Now(), &err)

	language := c.language
	if language == "" {
		language = "auto"
	}
	form := httputils.MultipartForm{
		FileField: "file",
		FilePath:  audioPath,
		Fields: map[string]string{
			"response_format": "verbose_json",
			"beam_size":       strconv.Itoa(beamSize),
			"language":        language,
			"temperature":     "0.0",
		},
	}
	var raw json.RawMessage
	if err := httputils.PostMultipart(ctx, c.baseURL+"/inference", form, &raw); err != nil {
		return nil, err
	}
	return segmentsFromJSON(string(raw)), nil
}
