package controllers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"notebot/notebot/services/enrich"
	"notebot/notebot/sources/db/dao"
	"notebot/notebot/sources/db/models"
	"notebot/notebot/utils/logging"
	"notebot/notebot/utils/metrics"
)

// Status lines shown to the user while a request is in progress.
const (
	StatusProcessingNote  = "Processing note..."
	StatusProcessingVoice = "🎧 Processing voice message..."
	StatusTranscribing    = "📝 Transcribing..."
	StatusSearching       = "🔍 Searching..."
	StatusAnalyzing       = "🧠 Analyzing your notes..."

	NoSpeechMessage  = "❌ Could not transcribe audio."
	SearchUsage      = "Usage: /search <query>"
	ErrorMessage     = "An error occurred while processing your request."
	EmptyNoteMessage = "Note text is empty."
)

var (
	// ErrNoSpeech means the recording produced no transcript. Nothing is stored.
	ErrNoSpeech = errors.New("could not transcribe audio")
	// ErrEmptyNote rejects blank text before any model call.
	ErrEmptyNote = errors.New("note text is empty")
)

// StatusFunc receives progress lines. It may be nil.
type StatusFunc func(text string)

func (f StatusFunc) send(text string) {
	if f != nil {
		f(text)
	}
}

// FetchAudio produces a local audio file for a voice note. The controller
// removes the file once the note is processed.
type FetchAudio func(ctx context.Context) (string, error)

type Enricher interface {
	Enrich(ctx context.Context, text string) enrich.Result
}

type Transcriber interface {
	Transcribe(ctx context.Context, path string) string
}

type Searcher interface {
	Search(ctx context.Context, query string, notes []models.Note) string
}

type Analyzer interface {
	Analyze(ctx context.Context, notesText string) string
}

type VoiceArchive interface {
	UploadVoice(ctx context.Context, userID int64, noteID uint, file string) (string, error)
}

// Receipt describes a stored note.
type Receipt struct {
	ID         uint   `json:"id"`
	Summary    string `json:"summary"`
	Tags       string `json:"tags"`
	Transcript string `json:"transcript,omitempty"`
	Degraded   bool   `json:"degraded"`
}

func (r Receipt) Message() string {
	return fmt.Sprintf("✅ Note saved!\n\n📝 **Summary**: %s\n🏷 **Tags**: %s", r.Summary, r.Tags)
}

func TranscribedStatus(text string) string {
	return fmt.Sprintf("🗣 **Transcribed**: %s\n\n🤖 Generating summary...", text)
}

// NotesController sequences the note pipelines. It holds no per-request state.
type NotesController struct {
	dao         *dao.NoteDAO
	enricher    Enricher
	transcriber Transcriber
	searcher    Searcher
	analyzer    Analyzer
	archive     VoiceArchive
}

type NotesOptions struct {
	Enricher    Enricher
	Transcriber Transcriber
	Searcher    Searcher
	Analyzer    Analyzer
	// Archive is optional.
	Archive VoiceArchive
}

func NewNotesController(noteDAO *dao.NoteDAO, opts NotesOptions) *NotesController {
	return &NotesController{
		dao:         noteDAO,
		enricher:    opts.Enricher,
		transcriber: opts.Transcriber,
		searcher:    opts.Searcher,
		analyzer:    opts.Analyzer,
		archive:     opts.Archive,
	}
}

func (c *NotesController) AddTextNote(ctx context.Context, userID int64, text string, status StatusFunc) (Receipt, error) {
	if strings.TrimSpace(text) == "" {
		metrics.PipelineResults.WithLabelValues("text_note", "invalid").Inc()
		return Receipt{}, ErrEmptyNote
	}
	status.send(StatusProcessingNote)

	receipt, err := c.save(ctx, userID, text)
	if err != nil {
		metrics.PipelineResults.WithLabelValues("text_note", "error").Inc()
		return Receipt{}, err
	}
	metrics.PipelineResults.WithLabelValues("text_note", "ok").Inc()
	return receipt, nil
}

func (c *NotesController) AddVoiceNote(ctx context.Context, userID int64, fetch FetchAudio, status StatusFunc) (Receipt, error) {
	status.send(StatusProcessingVoice)

	path, err := fetch(ctx)
	if err != nil {
		metrics.PipelineResults.WithLabelValues("voice_note", "error").Inc()
		return Receipt{}, fmt.Errorf("fetch audio: %w", err)
	}
	defer os.Remove(path)

	status.send(StatusTranscribing)
	text := c.transcriber.Transcribe(ctx, path)
	if text == "" {
		metrics.PipelineResults.WithLabelValues("voice_note", "no_speech").Inc()
		status.send(NoSpeechMessage)
		return Receipt{}, ErrNoSpeech
	}
	status.send(TranscribedStatus(text))

	receipt, err := c.save(ctx, userID, text)
	if err != nil {
		metrics.PipelineResults.WithLabelValues("voice_note", "error").Inc()
		return Receipt{}, err
	}
	receipt.Transcript = text
	metrics.PipelineResults.WithLabelValues("voice_note", "ok").Inc()

	if c.archive != nil {
		key, err := c.archive.UploadVoice(ctx, userID, receipt.ID, path)
		if err != nil {
			logging.ErrorLogger.Error("Voice archive upload failed",
				zap.Int64("user_id", userID), zap.Uint("note_id", receipt.ID), zap.Error(err))
		} else {
			logging.AppLogger.Info("Voice archived", zap.String("key", key))
		}
	}
	return receipt, nil
}

func (c *NotesController) save(ctx context.Context, userID int64, text string) (Receipt, error) {
	result := c.enricher.Enrich(ctx, text)
	tags := result.TagString()

	id, err := c.dao.AddNote(ctx, userID, text, result.Summary, tags)
	if err != nil {
		logging.ErrorLogger.Error("Note save failed", zap.Int64("user_id", userID), zap.Error(err))
		return Receipt{}, err
	}
	logging.AppLogger.Info("Note saved",
		zap.Int64("user_id", userID), zap.Uint("note_id", id), zap.Bool("degraded", result.Degraded))
	return Receipt{ID: id, Summary: result.Summary, Tags: tags, Degraded: result.Degraded}, nil
}

// Search returns SearchUsage for a blank query without touching the store.
func (c *NotesController) Search(ctx context.Context, userID int64, query string, status StatusFunc) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchUsage, nil
	}
	status.send(StatusSearching)

	notes, err := c.dao.GetNotes(ctx, userID)
	if err != nil {
		return "", err
	}
	return c.searcher.Search(ctx, query, notes), nil
}

func (c *NotesController) Analyze(ctx context.Context, userID int64, status StatusFunc) (string, error) {
	status.send(StatusAnalyzing)

	text, err := c.dao.GetAllNotesText(ctx, userID)
	if err != nil {
		return "", err
	}
	return c.analyzer.Analyze(ctx, text), nil
}

func (c *NotesController) ListNotes(ctx context.Context, userID int64) ([]models.Note, error) {
	return c.dao.GetNotes(ctx, userID)
}
