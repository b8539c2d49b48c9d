package llm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"notebot/notebot/config"
	"notebot/notebot/utils/logging"
)

// Loaders build each model backend. They run at most once successfully per
// Registry; a failed load is retried on the next request.
type Loaders struct {
	Generator  func(ctx context.Context) (Generator, error)
	Embedder   func(ctx context.Context) (Embedder, error)
	Recognizer func(ctx context.Context) (SpeechRecognizer, error)
}

// Registry hands out shared model handles. It is built once at process start
// and passed to every service that needs a model.
type Registry struct {
	generator  lazy[Generator]
	embedder   lazy[Embedder]
	recognizer lazy[SpeechRecognizer]
}

func NewRegistry(l Loaders) *Registry {
	return &Registry{
		generator:  lazy[Generator]{name: "generator", load: l.Generator},
		embedder:   lazy[Embedder]{name: "embedder", load: l.Embedder},
		recognizer: lazy[SpeechRecognizer]{name: "speech recognizer", load: l.Recognizer},
	}
}

func (r *Registry) Generator(ctx context.Context) (Generator, error) {
	return r.generator.get(ctx)
}

func (r *Registry) Embedder(ctx context.Context) (Embedder, error) {
	return r.embedder.get(ctx)
}

func (r *Registry) Recognizer(ctx context.Context) (SpeechRecognizer, error) {
	return r.recognizer.get(ctx)
}

// LoadersFromConfig wires the configured backends.
func LoadersFromConfig(cfg config.Config) Loaders {
	var l Loaders

	switch cfg.ModelBackend {
	case "openai":
		client := NewOpenAIClient(openAIOptions(cfg))
		l.Generator = func(ctx context.Context) (Generator, error) { return client, nil }
		l.Embedder = func(ctx context.Context) (Embedder, error) { return client, nil }
	default:
		client := NewOllamaClient(cfg.OllamaURL, cfg.LLMModelName, cfg.EmbeddingModelName)
		var mu sync.Mutex
		checked := false
		load := func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			if checked {
				return nil
			}
			if err := client.Load(ctx); err != nil {
				return err
			}
			checked = true
			return nil
		}
		l.Generator = func(ctx context.Context) (Generator, error) {
			if err := load(ctx); err != nil {
				return nil, err
			}
			return client, nil
		}
		l.Embedder = func(ctx context.Context) (Embedder, error) {
			if err := load(ctx); err != nil {
				return nil, err
			}
			return client, nil
		}
	}

	switch cfg.TranscribeBackend {
	case "openai":
		client := NewOpenAIClient(openAIOptions(cfg))
		l.Recognizer = func(ctx context.Context) (SpeechRecognizer, error) { return client, nil }
	default:
		client := NewWhisperClient(cfg.WhisperURL, cfg.WhisperLanguage)
		l.Recognizer = func(ctx context.Context) (SpeechRecognizer, error) { return client, nil }
	}
	return l
}

func openAIOptions(cfg config.Config) OpenAIOptions {
	return OpenAIOptions{
		BaseURL:        cfg.OpenAIBaseURL,
		APIKey:         cfg.OpenAIAPIKey,
		Model:          cfg.LLMModelName,
		EmbeddingModel: cfg.EmbeddingModelName,
		AudioModel:     cfg.WhisperModelSize,
		Language:       cfg.WhisperLanguage,
	}
}

type lazy[T any] struct {
	name   string
	load   func(ctx context.Context) (T, error)
	mu     sync.Mutex
	value  T
	loaded bool
}

func (l *lazy[T]) get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.value, nil
	}
	if l.load == nil {
		var zero T
		return zero, fmt.Errorf("%s is not configured", l.name)
	}
	logging.AppLogger.Info("Loading model", zap.String("model", l.name))
	v, err := l.load(ctx)
	if err != nil {
		var zero T
		logging.ErrorLogger.Error("model load failed", zap.String("model", l.name), zap.Error(err))
		return zero, err
	}
	l.value = v
	l.loaded = true
	return v, nil
}
