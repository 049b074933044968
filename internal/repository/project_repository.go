package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"agenthub/internal/model"
)

const projectWithCounts = "projects.*, " +
	"(SELECT COUNT(*) FROM messages WHERE messages.project_id = projects.id) AS message_count, " +
	"(SELECT COUNT(*) FROM files WHERE files.project_id = projects.id) AS file_count"

// ProjectUpdate lists the mutable project fields. Nil fields are left untouched.
type ProjectUpdate struct {
	Name         *string
	Description  *string
	SystemPrompt *string
}

// ProjectRepository defines owner-scoped project persistence operations.
// Every read and write filters on both the project id and the owner id.
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error)
	FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*model.Project, error)
	UpdateByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID, update ProjectUpdate) (*model.Project, error)
	Touch(ctx context.Context, id uuid.UUID) error
	// DeleteByIDAndOwner removes the project with its messages and files in
	// one transaction and returns the deleted file rows once committed.
	DeleteByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) ([]model.File, error)
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

// Create creates a new project.
func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// ListByOwner lists the owner's projects, most recently active first.
func (r *projectRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error) {
	projects := make([]model.Project, 0)
	err := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Select(projectWithCounts).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// FindByIDAndOwner finds a project by id, scoped to its owner.
func (r *projectRepository) FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*model.Project, error) {
	return findOwnedProject(r.db.WithContext(ctx), id, ownerID)
}

// UpdateByIDAndOwner applies update to an owned project and returns the result.
func (r *projectRepository) UpdateByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID, update ProjectUpdate) (*model.Project, error) {
	var updated *model.Project
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findOwnedProject(tx, id, ownerID); err != nil {
			return err
		}

		fields := map[string]interface{}{"updated_at": tx.NowFunc()}
		if update.Name != nil {
			fields["name"] = *update.Name
		}
		if update.Description != nil {
			fields["description"] = *update.Description
		}
		if update.SystemPrompt != nil {
			fields["system_prompt"] = *update.SystemPrompt
		}

		err := tx.Model(&model.Project{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Updates(fields).Error
		if err != nil {
			return err
		}

		p, err := findOwnedProject(tx, id, ownerID)
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Touch bumps the project's updated_at to now.
func (r *projectRepository) Touch(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

// DeleteByIDAndOwner deletes an owned project and everything attached to it.
func (r *projectRepository) DeleteByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) ([]model.File, error) {
	var files []model.File
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project model.Project
		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&project).Error; err != nil {
			return err
		}

		if err := tx.Where("project_id = ?", project.ID).Find(&files).Error; err != nil {
			return err
		}

		if err := tx.Where("project_id = ?", project.ID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&model.File{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND owner_id = ?", project.ID, ownerID).Delete(&model.Project{}).Error
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func findOwnedProject(db *gorm.DB, id, ownerID uuid.UUID) (*model.Project, error) {
	var project model.Project
	err := db.Model(&model.Project{}).
		Select(projectWithCounts).
		Where("projects.id = ? AND projects.owner_id = ?", id, ownerID).
		First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ownedProjectIDs is a sub-select of the project ids that belong to ownerID.
func ownedProjectIDs(db *gorm.DB, ownerID uuid.UUID) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Model(&model.Project{}).
		Select("id").
		Where("owner_id = ?", ownerID)
}
