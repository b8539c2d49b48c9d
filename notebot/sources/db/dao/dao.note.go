// notebot/sources/db/dao/dao.note.go
package dao

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"notebot/notebot/sources/db/models"
)

// TimeLayout renders created_at in concatenated note text.
const TimeLayout = "2006-01-02 15:04:05"

var ErrEmptyContent = errors.New("note content is empty")

// StorageError wraps any failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

type NoteDAO struct {
	DB *gorm.DB
}

func NewNoteDAO(db *gorm.DB) *NoteDAO {
	return &NoteDAO{DB: db}
}

// AddNote appends a note and returns its id.
func (dao *NoteDAO) AddNote(ctx context.Context, userID int64, content, summary, tags string) (uint, error) {
	if strings.TrimSpace(content) == "" {
		return 0, ErrEmptyContent
	}
	note := &models.Note{
		UserID:  userID,
		Content: content,
		Summary: summary,
		Tags:    tags,
	}
	if err := dao.DB.WithContext(ctx).Create(note).Error; err != nil {
		return 0, &StorageError{Op: "add", Err: errors.WithStack(err)}
	}
	return note.ID, nil
}

// GetNotes returns every note of the user, newest first.
func (dao *NoteDAO) GetNotes(ctx context.Context, userID int64) ([]models.Note, error) {
	notes := []models.Note{}
	err := dao.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Find(&notes).Error
	if err != nil {
		return nil, &StorageError{Op: "list", Err: errors.WithStack(err)}
	}
	return notes, nil
}

// GetAllNotesText renders the user's notes one per line for use as model input.
func (dao *NoteDAO) GetAllNotesText(ctx context.Context, userID int64) (string, error) {
	notes, err := dao.GetNotes(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(notes) == 0 {
		return "", nil
	}
	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		lines = append(lines, fmt.Sprintf("ID: %d | Date: %s | Content: %s | Tags: %s",
			n.ID, n.CreatedAt.UTC().Format(TimeLayout), n.Content, n.Tags))
	}
	return strings.Join(lines, "\n"), nil
}
