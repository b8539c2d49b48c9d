package llm

import (
	"context"
	"fmt"
	"time"

	httputils "notebot/notebot/utils/http"
	"notebot/notebot/utils/logging"
	"notebot/notebot/utils/metrics"
)

// GenerateOptions bounds one text generation call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	Sample      bool
}

// Generator continues a prompt with plain text. Output has no schema; callers parse.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// Embedder returns one fixed-dimension vector per input string, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Segment is one timed piece of a transcript.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// SpeechRecognizer turns an audio file into transcript segments in emission order.
type SpeechRecognizer interface {
	Transcribe(ctx context.Context, audioPath string, beamSize int) ([]Segment, error)
}

type OllamaClient struct {
	baseURL        string
	model          string
	embeddingModel string
}

func NewOllamaClient(baseURL, model, embeddingModel string) *OllamaClient {
	return &OllamaClient{baseURL: baseURL, model: model, embeddingModel: embeddingModel}
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type showRequest struct {
	Model string `json:"model"`
}

// Load checks that both configured models are present on the server.
func (c *OllamaClient) Load(ctx context.Context) error {
	defer logging.LogDuration(ctx, "ollama_load")()
	for _, m := range []string{c.model, c.embeddingModel} {
		if m == "" {
			continue
		}
		if err := httputils.PostJSON(ctx, c.baseURL+"/show", showRequest{Model: m}, nil); err != nil {
			return fmt.Errorf("ollama model %s: %w", m, err)
		}
	}
	return nil
}

func (c *OllamaClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (_ string, err error) {
	defer logging.LogDuration(ctx, "ollama_generate")()
	defer metrics.ObserveModel("generate", time.Now(), &err)

	temperature := opts.Temperature
	if !opts.Sample {
		temperature = 0
	}
	req := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]interface{}{
			"num_predict": opts.MaxTokens,
			"temperature": temperature,
		},
	}
	var resp generateResponse
	if err := httputils.PostJSON(ctx, c.baseURL+"/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (c *OllamaClient) Embed(ctx context.Context, texts []string) (_ [][]float64, err error) {
	defer logging.LogDuration(ctx, "ollama_embed")()
	defer metrics.ObserveModel("embed", time.Now(), &err)

	var resp embedResponse
	if err := httputils.PostJSON(ctx, c.baseURL+"/embed", embedRequest{Model: c.embeddingModel, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}
