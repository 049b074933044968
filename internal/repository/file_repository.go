package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"agenthub/internal/model"
)

// FileRepository defines file metadata persistence operations. Project
// ownership is enforced with a sub-select on projects.owner_id.
type FileRepository interface {
	Create(ctx context.Context, file *model.File) error
	ListByProject(ctx context.Context, projectID, ownerID uuid.UUID) ([]model.File, error)
	FindByIDAndProject(ctx context.Context, id, projectID, ownerID uuid.UUID) (*model.File, error)
	// DeleteByIDAndProject deletes the row and runs removeBlob in the same
	// transaction; an error from removeBlob keeps the row.
	DeleteByIDAndProject(ctx context.Context, id, projectID, ownerID uuid.UUID, removeBlob func(model.File) error) error
}

type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository creates a new file repository.
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(ctx context.Context, file *model.File) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *fileRepository) ListByProject(ctx context.Context, projectID, ownerID uuid.UUID) ([]model.File, error) {
	files := make([]model.File, 0)
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND project_id IN (?)", projectID, ownedProjectIDs(r.db, ownerID)).
		Order("created_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (r *fileRepository) FindByIDAndProject(ctx context.Context, id, projectID, ownerID uuid.UUID) (*model.File, error) {
	return findOwnedFile(r.db.WithContext(ctx), id, projectID, ownerID)
}

func (r *fileRepository) DeleteByIDAndProject(ctx context.Context, id, projectID, ownerID uuid.UUID, removeBlob func(model.File) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		file, err := findOwnedFile(tx, id, projectID, ownerID)
		if err != nil {
			return err
		}
		if err := tx.Where("id = ?", file.ID).Delete(&model.File{}).Error; err != nil {
			return err
		}
		if removeBlob != nil {
			return removeBlob(*file)
		}
		return nil
	})
}

func findOwnedFile(db *gorm.DB, id, projectID, ownerID uuid.UUID) (*model.File, error) {
	var file model.File
	err := db.Where("id = ? AND project_id = ? AND project_id IN (?)", id, projectID, ownedProjectIDs(db, ownerID)).
		First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}
