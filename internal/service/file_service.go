package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	apperrors "agenthub/internal/errors"
	"agenthub/internal/model"
	"agenthub/internal/repository"
	"agenthub/internal/storage"
)

// sniffLen matches the mimetype library's default read limit.
const sniffLen = 3072

// Upload describes an incoming file before it is stored.
type Upload struct {
	Filename string
	MimeType string
	Size     int64
	Content  io.Reader
}

// FilePolicy bounds what may be uploaded.
type FilePolicy struct {
	MaxBytes     int64
	AllowedTypes []string
}

// FileService handles project attachments.
type FileService interface {
	List(ctx context.Context, ownerID, projectID uuid.UUID) ([]model.File, error)
	Upload(ctx context.Context, ownerID, projectID uuid.UUID, upload Upload) (*model.File, error)
	Get(ctx context.Context, ownerID, projectID, fileID uuid.UUID) (*model.File, error)
	// Open returns the metadata and a reader the caller must close.
	Open(ctx context.Context, ownerID, projectID, fileID uuid.UUID) (*model.File, io.ReadCloser, error)
	Delete(ctx context.Context, ownerID, projectID, fileID uuid.UUID) error
}

type fileService struct {
	projectRepo repository.ProjectRepository
	fileRepo    repository.FileRepository
	blobs       storage.BlobStore
	maxBytes    int64
	allowed     map[string]struct{}
}

// NewFileService creates a new file service.
func NewFileService(projectRepo repository.ProjectRepository, fileRepo repository.FileRepository, blobs storage.BlobStore, policy FilePolicy) FileService {
	allowed := make(map[string]struct{}, len(policy.AllowedTypes))
	for _, t := range policy.AllowedTypes {
		if t = baseMediaType(t); t != "" {
			allowed[t] = struct{}{}
		}
	}
	return &fileService{
		projectRepo: projectRepo,
		fileRepo:    fileRepo,
		blobs:       blobs,
		maxBytes:    policy.MaxBytes,
		allowed:     allowed,
	}
}

// baseMediaType strips parameters such as charset.
func baseMediaType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		return strings.ToLower(mt)
	}
	return strings.ToLower(v)
}

func (s *fileService) ownProject(ctx context.Context, ownerID, projectID uuid.UUID) error {
	if _, err := s.projectRepo.FindByIDAndOwner(ctx, projectID, ownerID); err != nil {
		return notFound(err, "find project")
	}
	return nil
}

func (s *fileService) List(ctx context.Context, ownerID, projectID uuid.UUID) ([]model.File, error) {
	if err := s.ownProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	files, err := s.fileRepo.ListByProject(ctx, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// Upload validates type and size, writes the blob, then records metadata.
// A metadata failure removes the blob again.
func (s *fileService) Upload(ctx context.Context, ownerID, projectID uuid.UUID, upload Upload) (*model.File, error) {
	if err := s.ownProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, apperrors.Validation("file is empty")
	}
	if upload.Size > s.maxBytes {
		return nil, apperrors.ErrFileTooLarge
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(upload.Content, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	mimeType := baseMediaType(upload.MimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = baseMediaType(mimetype.Detect(head).String())
	}
	if _, ok := s.allowed[mimeType]; !ok {
		return nil, apperrors.ErrUnsupportedFileType
	}

	original := filepath.Base(strings.TrimSpace(upload.Filename))
	if original == "." || original == string(filepath.Separator) || original == "" {
		original = "upload"
	}
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		if known := mimetype.Lookup(mimeType); known != nil {
			ext = known.Extension()
		}
	}

	storedName := uuid.New().String() + ext
	key := projectID.String() + "/" + storedName
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), upload.Content), upload.Size)
	if err := s.blobs.Put(ctx, key, body, upload.Size, mimeType); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	file := &model.File{
		ProjectID:    projectID,
		StoredName:   storedName,
		OriginalName: original,
		MimeType:     mimeType,
		Size:         upload.Size,
		StoragePath:  key,
	}
	if err := s.fileRepo.Create(ctx, file); err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			slog.ErrorContext(ctx, "remove orphaned blob", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("create file: %w", err)
	}
	return file, nil
}

func (s *fileService) Get(ctx context.Context, ownerID, projectID, fileID uuid.UUID) (*model.File, error) {
	file, err := s.fileRepo.FindByIDAndProject(ctx, fileID, projectID, ownerID)
	if err != nil {
		return nil, notFound(err, "find file")
	}
	return file, nil
}

func (s *fileService) Open(ctx context.Context, ownerID, projectID, fileID uuid.UUID) (*model.File, io.ReadCloser, error) {
	file, err := s.Get(ctx, ownerID, projectID, fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, file.StoragePath)
	if errors.Is(err, storage.ErrBlobNotFound) {
		slog.ErrorContext(ctx, "file row has no blob", "file_id", file.ID, "key", file.StoragePath)
		return nil, nil, fmt.Errorf("%w: blob %s missing", apperrors.ErrNotFound, file.StoragePath)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open blob: %w", err)
	}
	return file, rc, nil
}

func (s *fileService) Delete(ctx context.Context, ownerID, projectID, fileID uuid.UUID) error {
	err := s.fileRepo.DeleteByIDAndProject(ctx, fileID, projectID, ownerID, func(f model.File) error {
		return s.blobs.Delete(ctx, f.StoragePath)
	})
	if err != nil {
		return notFound(err, "delete file")
	}
	return nil
}
