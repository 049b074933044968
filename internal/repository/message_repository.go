package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"agenthub/internal/model"
)

// MessageRepository defines chat turn persistence operations. Project
// ownership is enforced with a sub-select on projects.owner_id.
type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	ListByProject(ctx context.Context, projectID, ownerID uuid.UUID) ([]model.Message, error)
	// ListRecent returns at most limit of the newest turns, oldest first.
	ListRecent(ctx context.Context, projectID, ownerID uuid.UUID, limit int) ([]model.Message, error)
	DeleteByProject(ctx context.Context, projectID, ownerID uuid.UUID) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) ListByProject(ctx context.Context, projectID, ownerID uuid.UUID) ([]model.Message, error) {
	messages := make([]model.Message, 0)
	err := r.scoped(ctx, projectID, ownerID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) ListRecent(ctx context.Context, projectID, ownerID uuid.UUID, limit int) ([]model.Message, error) {
	messages := make([]model.Message, 0, limit)
	if limit <= 0 {
		return messages, nil
	}
	err := r.scoped(ctx, projectID, ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *messageRepository) DeleteByProject(ctx context.Context, projectID, ownerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("project_id = ? AND project_id IN (?)", projectID, ownedProjectIDs(r.db, ownerID)).
		Delete(&model.Message{})
	return res.RowsAffected, res.Error
}

func (r *messageRepository) scoped(ctx context.Context, projectID, ownerID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("project_id = ? AND project_id IN (?)", projectID, ownedProjectIDs(r.db, ownerID))
}
