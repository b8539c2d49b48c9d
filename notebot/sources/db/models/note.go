// notebot/sources/db/models/note.go
package models

import (
	"time"
)

// Note is written once, at creation, and never updated or deleted.
type Note struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"user_id" gorm:"not null;index"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Summary   string    `json:"summary" gorm:"type:text"`
	Tags      string    `json:"tags" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Note) TableName() string {
	return "notes"
}
