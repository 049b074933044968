package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File is the metadata of an uploaded blob attached to a project.
type File struct {
	ID           uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	ProjectID    uuid.UUID `json:"projectId" gorm:"type:char(36);not null;index"`
	StoredName   string    `json:"filename" gorm:"size:255;not null"`
	OriginalName string    `json:"originalName" gorm:"size:255;not null"`
	MimeType     string    `json:"mimeType" gorm:"size:127;not null"`
	Size         int64     `json:"size" gorm:"not null"`
	StoragePath  string    `json:"-" gorm:"size:512;not null"`
	CreatedAt    time.Time `json:"createdAt"`
}

// BeforeCreate sets UUID before creating the record.
func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
