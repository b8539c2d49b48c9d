package controllers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notebot/notebot/services/enrich"
	"notebot/notebot/sources/db"
	"notebot/notebot/sources/db/dao"
	"notebot/notebot/sources/db/models"
)

type fakeEnricher struct{ calls int }

func (f *fakeEnricher) Enrich(ctx context.Context, text string) enrich.Result {
	f.calls++
	return enrich.Result{Summary: "sum: " + text, Tags: []string{"a", "b"}}
}

type fakeTranscriber struct {
	text string
	path string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) string {
	f.path = path
	return f.text
}

type fakeSearcher struct {
	query string
	notes []models.Note
}

func (f *fakeSearcher) Search(ctx context.Context, query string, notes []models.Note) string {
	f.query, f.notes = query, notes
	return "results"
}

type fakeAnalyzer struct{ text string }

func (f *fakeAnalyzer) Analyze(ctx context.Context, text string) string {
	f.text = text
	return "analysis"
}

type fakeArchive struct {
	keys []string
	err  error
}

func (f *fakeArchive) UploadVoice(ctx context.Context, userID int64, noteID uint, file string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := os.Stat(file); err != nil {
		return "", err
	}
	f.keys = append(f.keys, file)
	return file, nil
}

type fixture struct {
	ctrl        *NotesController
	database    *db.Database
	enricher    *fakeEnricher
	transcriber *fakeTranscriber
	searcher    *fakeSearcher
	analyzer    *fakeAnalyzer
	archive     *fakeArchive
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.Open(context.Background(), sqlite.Open(":memory:"))
	require.NoError(t, err)
	t.Cleanup(database.Close)

	f := &fixture{
		database:    database,
		enricher:    &fakeEnricher{},
		transcriber: &fakeTranscriber{},
		searcher:    &fakeSearcher{},
		analyzer:    &fakeAnalyzer{},
		archive:     &fakeArchive{},
	}
	f.ctrl = NewNotesController(dao.NewNoteDAO(database.DB), NotesOptions{
		Enricher:    f.enricher,
		Transcriber: f.transcriber,
		Searcher:    f.searcher,
		Analyzer:    f.analyzer,
		Archive:     f.archive,
	})
	return f
}

func audioFile(t *testing.T) FetchAudio {
	path := filepath.Join(t.TempDir(), "voice.ogg")
	require.NoError(t, os.WriteFile(path, []byte("OggS"), 0o600))
	return func(ctx context.Context) (string, error) { return path, nil }
}

func collect(lines *[]string) StatusFunc {
	return func(text string) { *lines = append(*lines, text) }
}

func TestAddTextNote(t *testing.T) {
	f := newFixture(t)
	var lines []string

	receipt, err := f.ctrl.AddTextNote(context.Background(), 5, "Buy milk", collect(&lines))
	require.NoError(t, err)

	assert.Equal(t, uint(1), receipt.ID)
	assert.Equal(t, "sum: Buy milk", receipt.Summary)
	assert.Equal(t, "a, b", receipt.Tags)
	assert.Equal(t, []string{StatusProcessingNote}, lines)
	assert.Equal(t, "✅ Note saved!\n\n📝 **Summary**: sum: Buy milk\n🏷 **Tags**: a, b", receipt.Message())

	notes, err := f.ctrl.ListNotes(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Buy milk", notes[0].Content)
}

func TestAddTextNoteRejectsBlankTextBeforeEnrichment(t *testing.T) {
	f := newFixture(t)
	var lines []string

	_, err := f.ctrl.AddTextNote(context.Background(), 5, " \n\t ", collect(&lines))
	require.ErrorIs(t, err, ErrEmptyNote)
	var storageErr *dao.StorageError
	assert.False(t, errors.As(err, &storageErr))

	assert.Zero(t, f.enricher.calls)
	assert.Empty(t, lines)
	notes, err := f.ctrl.ListNotes(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestAddTextNoteStorageError(t *testing.T) {
	f := newFixture(t)
	f.database.Close()

	_, err := f.ctrl.AddTextNote(context.Background(), 5, "Buy milk", nil)
	var storageErr *dao.StorageError
	assert.True(t, errors.As(err, &storageErr))
}

func TestAddVoiceNote(t *testing.T) {
	f := newFixture(t)
	f.transcriber.text = "Call mom tomorrow"
	var lines []string

	fetch := audioFile(t)
	path, _ := fetch(context.Background())
	receipt, err := f.ctrl.AddVoiceNote(context.Background(), 9, fetch, collect(&lines))
	require.NoError(t, err)

	assert.Equal(t, "Call mom tomorrow", receipt.Transcript)
	assert.Equal(t, "sum: Call mom tomorrow", receipt.Summary)
	assert.Equal(t, []string{
		StatusProcessingVoice,
		StatusTranscribing,
		"🗣 **Transcribed**: Call mom tomorrow\n\n🤖 Generating summary...",
	}, lines)
	assert.Equal(t, path, f.transcriber.path)
	assert.Len(t, f.archive.keys, 1)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "temporary audio should be removed")
}

func TestAddVoiceNoteNoSpeech(t *testing.T) {
	f := newFixture(t)
	var lines []string

	_, err := f.ctrl.AddVoiceNote(context.Background(), 9, audioFile(t), collect(&lines))
	assert.ErrorIs(t, err, ErrNoSpeech)
	assert.Equal(t, NoSpeechMessage, lines[len(lines)-1])
	assert.Equal(t, 0, f.enricher.calls)

	notes, err := f.ctrl.ListNotes(context.Background(), 9)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestAddVoiceNoteArchiveFailureIsNotSurfaced(t *testing.T) {
	f := newFixture(t)
	f.transcriber.text = "hello"
	f.archive.err = errors.New("bucket missing")

	receipt, err := f.ctrl.AddVoiceNote(context.Background(), 9, audioFile(t), nil)
	require.NoError(t, err)
	assert.Equal(t, uint(1), receipt.ID)
}

func TestAddVoiceNoteFetchError(t *testing.T) {
	f := newFixture(t)
	fetch := func(ctx context.Context) (string, error) { return "", errors.New("download failed") }

	_, err := f.ctrl.AddVoiceNote(context.Background(), 9, fetch, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSpeech)
}

func TestSearchBlankQueryShowsUsage(t *testing.T) {
	f := newFixture(t)
	var lines []string

	out, err := f.ctrl.Search(context.Background(), 1, "   ", collect(&lines))
	require.NoError(t, err)
	assert.Equal(t, SearchUsage, out)
	assert.Empty(t, lines)
	assert.Nil(t, f.searcher.notes)
}

func TestSearchPassesUserNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctrl.AddTextNote(ctx, 1, "mine", nil)
	require.NoError(t, err)
	_, err = f.ctrl.AddTextNote(ctx, 2, "theirs", nil)
	require.NoError(t, err)

	var lines []string
	out, err := f.ctrl.Search(ctx, 1, " milk ", collect(&lines))
	require.NoError(t, err)

	assert.Equal(t, "results", out)
	assert.Equal(t, "milk", f.searcher.query)
	require.Len(t, f.searcher.notes, 1)
	assert.Equal(t, "mine", f.searcher.notes[0].Content)
	assert.Equal(t, []string{StatusSearching}, lines)
}

func TestAnalyzePassesConcatenatedText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctrl.AddTextNote(ctx, 1, "Buy milk", nil)
	require.NoError(t, err)

	out, err := f.ctrl.Analyze(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "analysis", out)
	assert.Contains(t, f.analyzer.text, "| Content: Buy milk | Tags: a, b")
}

func TestAnalyzeWithoutNotes(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.Analyze(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "", f.analyzer.text)
}
