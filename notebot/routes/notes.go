package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"notebot/notebot/config"
	"notebot/notebot/controllers"
	"notebot/notebot/middlewares"
	"notebot/notebot/utils/logging"
)

// maxVoiceUpload matches the Telegram bot download limit.
const maxVoiceUpload = 20 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type resultResponse struct {
	Result string `json:"result"`
}

func handleNotesJSON(handler func(r *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, status, err := handler(r)
		if err != nil {
			res = errorResponse{Error: err.Error()}
			if status >= http.StatusInternalServerError {
				logging.ErrorLogger.Error("request failed",
					zap.String("trace_id", logging.TraceID(r.Context())),
					zap.String("path", r.URL.Path),
					zap.Error(err))
				res = errorResponse{Error: controllers.ErrorMessage}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(res)
	}
}

func userID(r *http.Request) int64 {
	id, _ := middlewares.UserID(r.Context())
	return id
}

func NotesRoutes(ctrl *controllers.NotesController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))

		// Create text note
		gr.Post("/", handleNotesJSON(func(r *http.Request) (any, int, error) {
			var req struct {
				Content string `json:"content"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, http.StatusBadRequest, err
			}
			receipt, err := ctrl.AddTextNote(r.Context(), userID(r), req.Content, nil)
			if errors.Is(err, controllers.ErrEmptyNote) {
				return nil, http.StatusBadRequest, errors.New("content is required")
			}
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}
			return receipt, http.StatusCreated, nil
		}))

		// Create voice note from multipart field "audio"
		gr.With(middleware.RequestSize(maxVoiceUpload)).Post("/voice", handleNotesJSON(func(r *http.Request) (any, int, error) {
			file, header, err := r.FormFile("audio")
			if err != nil {
				return nil, http.StatusBadRequest, err
			}
			defer file.Close()

			path, err := saveUpload(file, filepath.Ext(header.Filename))
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}
			fetch := func(ctx context.Context) (string, error) { return path, nil }

			receipt, err := ctrl.AddVoiceNote(r.Context(), userID(r), fetch, nil)
			if errors.Is(err, controllers.ErrNoSpeech) {
				return nil, http.StatusUnprocessableEntity, errors.New(controllers.NoSpeechMessage)
			}
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}
			return receipt, http.StatusCreated, nil
		}))

		// List notes, newest first
		gr.Get("/", handleNotesJSON(func(r *http.Request) (any, int, error) {
			notes, err := ctrl.ListNotes(r.Context(), userID(r))
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}
			return notes, http.StatusOK, nil
		}))

		gr.Get("/search", handleNotesJSON(func(r *http.Request) (any, int, error) {
			result, err := ctrl.Search(r.Context(), userID(r), r.URL.Query().Get("q"), nil)
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}
			return resultResponse{Result: result}, http.StatusOK, nil
		}))

		gr.Get("/analyze", handleNotesJSON(func(r *http.Request) (any, int, error) {
			result, err := ctrl.Analyze(r.Context(), userID(r), nil)
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}
			return resultResponse{Result: result}, http.StatusOK, nil
		}))
	})

	// websocket authenticates with the token in its first frame
	r.HandleFunc("/ws", notesSocket(ctrl, cfg))
	return r
}

func saveUpload(src io.Reader, ext string) (string, error) {
	if ext == "" {
		ext = ".ogg"
	}
	tmp, err := os.CreateTemp("", "voice-*"+ext)
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := io.Copy(tmp, src); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
