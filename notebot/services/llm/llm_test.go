package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerateSendsOptions(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(generateResponse{Response: " hello ", Done: true})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/api", "phi", "all-minilm")
	out, err := c.Generate(context.Background(), "prompt", GenerateOptions{MaxTokens: 128, Temperature: 0.3, Sample: true})
	require.NoError(t, err)

	assert.Equal(t, " hello ", out)
	assert.Equal(t, "phi", got.Model)
	assert.Equal(t, "prompt", got.Prompt)
	assert.False(t, got.Stream)
	assert.EqualValues(t, 128, got.Options["num_predict"])
	assert.EqualValues(t, 0.3, got.Options["temperature"])
}

func TestOllamaGenerateWithoutSamplingIsGreedy(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(generateResponse{Response: "x"})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "phi", "")
	_, err := c.Generate(context.Background(), "p", GenerateOptions{MaxTokens: 10, Temperature: 0.9})
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.Options["temperature"])
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		resp := embedResponse{}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float64{float64(i), 1})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "phi", "all-minilm")
	vectors, err := c.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 1}, {1, 1}, {2, 1}}, vectors)
}

func TestOllamaEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1}}})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "phi", "all-minilm")
	_, err := c.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestOllamaLoadMissingModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'phi' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewOllamaClient(srv.URL, "phi", "all-minilm").Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phi")
}

func TestWhisperTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/inference", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "5", r.FormValue("beam_size"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "auto", r.FormValue("language"))
		w.Write([]byte(`{"text":" Buy milk. Call mom.","segments":[{"start":0,"end":1.2,"text":" Buy milk."},{"start":1.2,"end":2.5,"text":" Call mom."}]}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "voice.ogg")
	require.NoError(t, os.WriteFile(path, []byte("OggS"), 0o600))

	segments, err := NewWhisperClient(srv.URL, "").Transcribe(context.Background(), path, 5)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, " Buy milk.", segments[0].Text)
	assert.Equal(t, 1.2, segments[1].Start)
}

func TestWhisperTranscribeMissingFile(t *testing.T) {
	_, err := NewWhisperClient("http://127.0.0.1:1", "en").Transcribe(context.Background(), "/does/not/exist.ogg", 5)
	assert.Error(t, err)
}

func TestSegmentsFromJSON(t *testing.T) {
	assert.Equal(t, []Segment{{Text: "only text"}}, segmentsFromJSON(`{"text":"only text"}`))
	assert.Nil(t, segmentsFromJSON(`{"text":""}`))
	assert.Nil(t, segmentsFromJSON(`not json`))
}

func TestOpenAIGenerateAndEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/chat/completions":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "phi", body["model"])
			assert.EqualValues(t, 150, body["max_tokens"])
			w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"phi","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Topics: budget"}}]}`))
		case "/v1/embeddings":
			w.Write([]byte(`{"object":"list","model":"all-minilm","data":[{"object":"embedding","index":1,"embedding":[0,1]},{"object":"embedding","index":0,"embedding":[1,0]}],"usage":{"prompt_tokens":2,"total_tokens":2}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIOptions{BaseURL: srv.URL + "/v1/", Model: "phi", EmbeddingModel: "all-minilm"})

	out, err := c.Generate(context.Background(), "notes", GenerateOptions{MaxTokens: 150, Temperature: 0.7, Sample: true})
	require.NoError(t, err)
	assert.Equal(t, "Topics: budget", out)

	vectors, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vectors)
}

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return prompt, nil
}

func TestRegistryLoadsOnce(t *testing.T) {
	var calls int32
	r := NewRegistry(Loaders{
		Generator: func(ctx context.Context) (Generator, error) {
			atomic.AddInt32(&calls, 1)
			return stubGenerator{}, nil
		},
	})

	for i := 0; i < 3; i++ {
		g, err := r.Generator(context.Background())
		require.NoError(t, err)
		require.NotNil(t, g)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestRegistryRetriesFailedLoad(t *testing.T) {
	var calls int32
	r := NewRegistry(Loaders{
		Generator: func(ctx context.Context) (Generator, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return nil, errors.New("model server down")
			}
			return stubGenerator{}, nil
		},
	})

	_, err := r.Generator(context.Background())
	require.Error(t, err)
	g, err := r.Generator(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, g)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestRegistryUnconfigured(t *testing.T) {
	_, err := NewRegistry(Loaders{}).Embedder(context.Background())
	assert.Error(t, err)
}
