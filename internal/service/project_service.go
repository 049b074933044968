package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "agenthub/internal/errors"
	"agenthub/internal/model"
	"agenthub/internal/repository"
	"agenthub/internal/storage"
)

// ProjectInput carries the fields accepted when creating a project.
type ProjectInput struct {
	Name         string
	Description  string
	SystemPrompt string
}

// ProjectService handles owner-scoped project and transcript operations.
type ProjectService interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error)
	Create(ctx context.Context, ownerID uuid.UUID, input ProjectInput) (*model.Project, error)
	Get(ctx context.Context, ownerID, projectID uuid.UUID) (*model.Project, error)
	Update(ctx context.Context, ownerID, projectID uuid.UUID, update repository.ProjectUpdate) (*model.Project, error)
	Delete(ctx context.Context, ownerID, projectID uuid.UUID) error
	ListMessages(ctx context.Context, ownerID, projectID uuid.UUID) ([]model.Message, error)
	ClearMessages(ctx context.Context, ownerID, projectID uuid.UUID) (int64, error)
}

type projectService struct {
	projectRepo repository.ProjectRepository
	messageRepo repository.MessageRepository
	blobs       storage.BlobStore
}

// NewProjectService creates a new project service.
func NewProjectService(projectRepo repository.ProjectRepository, messageRepo repository.MessageRepository, blobs storage.BlobStore) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		messageRepo: messageRepo,
		blobs:       blobs,
	}
}

// notFound folds "no such row" into ErrNotFound and wraps anything else.
func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *projectService) List(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error) {
	projects, err := s.projectRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *projectService) Create(ctx context.Context, ownerID uuid.UUID, input ProjectInput) (*model.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}
	project := &model.Project{
		OwnerID:      ownerID,
		Name:         name,
		Description:  strings.TrimSpace(input.Description),
		SystemPrompt: input.SystemPrompt,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

func (s *projectService) Get(ctx context.Context, ownerID, projectID uuid.UUID) (*model.Project, error) {
	project, err := s.projectRepo.FindByIDAndOwner(ctx, projectID, ownerID)
	if err != nil {
		return nil, notFound(err, "find project")
	}
	return project, nil
}

func (s *projectService) Update(ctx context.Context, ownerID, projectID uuid.UUID, update repository.ProjectUpdate) (*model.Project, error) {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.Validation("name cannot be empty")
		}
		update.Name = &name
	}
	if update.Description != nil {
		desc := strings.TrimSpace(*update.Description)
		update.Description = &desc
	}
	project, err := s.projectRepo.UpdateByIDAndOwner(ctx, projectID, ownerID, update)
	if err != nil {
		return nil, notFound(err, "update project")
	}
	return project, nil
}

// Delete removes the project, its transcript and its files. Blobs go only
// after the rows are committed, so no file row ever outlives its blob; a
// blob that fails to delete is logged and left behind.
func (s *projectService) Delete(ctx context.Context, ownerID, projectID uuid.UUID) error {
	files, err := s.projectRepo.DeleteByIDAndOwner(ctx, projectID, ownerID)
	if err != nil {
		return notFound(err, "delete project")
	}
	blobCtx := context.WithoutCancel(ctx)
	for _, f := range files {
		if err := s.blobs.Delete(blobCtx, f.StoragePath); err != nil {
			slog.ErrorContext(ctx, "orphaned blob after project delete",
				"project_id", projectID,
				"file_id", f.ID,
				"key", f.StoragePath,
				"error", err,
			)
		}
	}
	return nil
}

func (s *projectService) ListMessages(ctx context.Context, ownerID, projectID uuid.UUID) ([]model.Message, error) {
	if _, err := s.Get(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.ListByProject(ctx, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

func (s *projectService) ClearMessages(ctx context.Context, ownerID, projectID uuid.UUID) (int64, error) {
	if _, err := s.Get(ctx, ownerID, projectID); err != nil {
		return 0, err
	}
	deleted, err := s.messageRepo.DeleteByProject(ctx, projectID, ownerID)
	if err != nil {
		return 0, fmt.Errorf("clear messages: %w", err)
	}
	return deleted, nil
}
