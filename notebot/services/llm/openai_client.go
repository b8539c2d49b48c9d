package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/tidwall/gjson"

	"notebot/notebot/utils/logging"
	"notebot/notebot/utils/metrics"
)

// OpenAIClient talks to any OpenAI-compatible server (llama.cpp, vLLM, LocalAI,
// faster-whisper-server) for generation, embeddings and transcription.
type OpenAIClient struct {
	client         openai.Client
	model          string
	embeddingModel string
	audioModel     string
	language       string
}

type OpenAIOptions struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	AudioModel     string
	Language       string
}

func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	apiKey := opts.APIKey
	if apiKey == "" {
		// Local servers ignore the key but the SDK insists on one.
		apiKey = "local"
	}
	return &OpenAIClient{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(opts.BaseURL),
			option.WithMaxRetries(0),
		),
		model:          opts.Model,
		embeddingModel: opts.EmbeddingModel,
		audioModel:     opts.AudioModel,
		language:       opts.Language,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (_ string, err error) {
	defer logging.LogDuration(ctx, "openai_generate")()
	defer metrics.ObserveModel("generate", time.Now(), &err)

	temperature := opts.Temperature
	if !opts.Sample {
		temperature = 0
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(opts.MaxTokens)),
		Temperature: openai.Float(temperature),
	}
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) (_ [][]float64, err error) {
	defer logging.LogDuration(ctx, "openai_embed")()
	defer metrics.ObserveModel("embed", time.Now(), &err)

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("server returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	vectors := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Transcribe uses verbose_json so segments come back individually. The
// OpenAI API has no beam width parameter; beamSize is ignored here.
func (c *OpenAIClient) Transcribe(ctx context.Context, audioPath string, beamSize int) (_ []Segment, err error) {
	defer logging.LogDuration(ctx, "openai_transcribe")()
	defer metrics.ObserveModel("transcribe", time.Now(), &err)

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:           f,
		Model:          openai.AudioModel(c.audioModel),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	if c.language != "" {
		params.Language = openai.String(c.language)
	}
	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	return segmentsFromJSON(resp.RawJSON()), nil
}

// segmentsFromJSON reads the verbose transcription shape shared by OpenAI and
// whisper.cpp: {"text": "...", "segments": [{"start", "end", "text"}]}.
func segmentsFromJSON(raw string) []Segment {
	parsed := gjson.Parse(raw)
	segments := parsed.Get("segments").Array()
	if len(segments) == 0 {
		if text := parsed.Get("text").String(); text != "" {
			return []Segment{{Text: text}}
		}
		return nil
	}
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		out = append(out, Segment{
			Start: s.Get("start").Float(),
			End:   s.Get("end").Float(),
			Text:  s.Get("text").String(),
		})
	}
	return out
}
