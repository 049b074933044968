package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project is an AI agent configured by its owner. Every message and file
// hangs off a project.
type Project struct {
	ID           uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	OwnerID      uuid.UUID `json:"ownerId" gorm:"type:char(36);not null;index"`
	Name         string    `json:"name" gorm:"size:255;not null"`
	Description  string    `json:"description" gorm:"type:text"`
	SystemPrompt string    `json:"systemPrompt" gorm:"type:text"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"index"`

	// Computed by the repository on reads; not part of the schema.
	MessageCount int64 `json:"messageCount" gorm:"->;-:migration"`
	FileCount    int64 `json:"fileCount" gorm:"->;-:migration"`
}

// BeforeCreate sets UUID before creating the record.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
