package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pickbox/backend/internal/models"
	"github.com/pickbox/backend/internal/storage"
	"github.com/pickbox/backend/pkg/logger"
	"gorm.io/gorm"
)

type FileService struct {
	DB      *gorm.DB
	Access  *AccessService
	Links   *LinkService
	Storage storage.ObjectStore
}

func NewFileService(db *gorm.DB, access *AccessService, links *LinkService, store storage.ObjectStore) *FileService {
	return &FileService{DB: db, Access: access, Links: links, Storage: store}
}

// Create records metadata for bytes already held under filename in storage.
func (s *FileService) Create(ctx context.Context, ownerID uuid.UUID, filename, originalName, mimeType string, size int64) (*models.File, error) {
	originalName, err := cleanOriginalName(originalName)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: storage key is required", ErrPolicyViolation)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: size cannot be negative", ErrPolicyViolation)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	file := models.File{
		OwnerID:      ownerID,
		Filename:     filename,
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         size,
	}
	if err := s.DB.WithContext(ctx).Create(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, fmt.Errorf("%w: owner %s", ErrNotFound, ownerID)
		}
		return nil, fmt.Errorf("creating file: %w", err)
	}
	return &file, nil
}

// Upload streams body into storage under a fresh key and records it. The
// stored object is removed again if the metadata write fails.
func (s *FileService) Upload(ctx context.Context, ownerID uuid.UUID, originalName, mimeType string, size int64, body io.Reader) (*models.File, error) {
	originalName, err := cleanOriginalName(originalName)
	if err != nil {
		return nil, err
	}
	if s.Storage == nil {
		return nil, errors.New("byte storage is not configured")
	}

	ext := filepath.Ext(originalName)
	if mimeType == "" {
		mimeType = mime.TypeByExtension(ext)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("%s/%s%s", ownerID.String(), uuid.New().String(), ext)
	if err := s.Storage.Upload(ctx, objectName, body, size, mimeType); err != nil {
		return nil, fmt.Errorf("storing file contents: %w", err)
	}

	file, err := s.Create(ctx, ownerID, objectName, originalName, mimeType, size)
	if err != nil {
		if delErr := s.Storage.Delete(context.WithoutCancel(ctx), objectName); delErr != nil {
			logger.ErrorWithUser(ownerID.String(), "file_contents_orphaned", delErr, map[string]interface{}{
				"storage_path": objectName,
			})
		}
		return nil, err
	}

	logger.InfoWithUser(ownerID.String(), "file_uploaded", map[string]interface{}{
		"file_id":      file.ID.String(),
		"file_name":    file.OriginalName,
		"file_size":    file.Size,
		"mime_type":    file.MimeType,
		"storage_path": objectName,
	})
	return file, nil
}

// UploadItem is one part of a multi-file upload.
type UploadItem struct {
	OriginalName string
	MimeType     string
	Size         int64
	Body         io.Reader
}

// UploadAll stores every item or none of them. Names and sizes are checked
// before anything is written, and files already stored are deleted again
// when a later item fails.
func (s *FileService) UploadAll(ctx context.Context, ownerID uuid.UUID, items []UploadItem) ([]*models.File, error) {
	for _, item := range items {
		if _, err := cleanOriginalName(item.OriginalName); err != nil {
			return nil, err
		}
		if item.Size < 0 {
			return nil, fmt.Errorf("%w: size cannot be negative", ErrPolicyViolation)
		}
	}

	uploaded := make([]*models.File, 0, len(items))
	for _, item := range items {
		file, err := s.Upload(ctx, ownerID, item.OriginalName, item.MimeType, item.Size, item.Body)
		if err != nil {
			s.discardUploads(ctx, ownerID, uploaded)
			return nil, err
		}
		uploaded = append(uploaded, file)
	}
	return uploaded, nil
}

func (s *FileService) discardUploads(ctx context.Context, ownerID uuid.UUID, files []*models.File) {
	ctx = context.WithoutCancel(ctx)
	for _, file := range files {
		if err := s.Delete(ctx, file.ID, ownerID); err != nil {
			logger.ErrorWithUser(ownerID.String(), "upload_rollback_failed", err, map[string]interface{}{
				"file_id":      file.ID.String(),
				"storage_path": file.Filename,
			})
		}
	}
}

func (s *FileService) ListOwnedBy(ctx context.Context, ownerID uuid.UUID) ([]models.File, error) {
	var files []models.File
	if err := s.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&files).Error; err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return files, nil
}

// GetOwned returns the file only when ownerID owns it; anything else is ErrNotFound.
func (s *FileService) GetOwned(ctx context.Context, fileID, ownerID uuid.UUID) (*models.File, error) {
	var file models.File
	err := s.DB.WithContext(ctx).First(&file, "id = ? AND owner_id = ?", fileID, ownerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading file: %w", err)
	}
	return &file, nil
}

// Get returns the file with its owner for any caller holding READ.
func (s *FileService) Get(ctx context.Context, fileID, callerID uuid.UUID) (*models.File, error) {
	if _, _, err := s.Access.Authorize(ctx, fileID, callerID, ActionRead); err != nil {
		return nil, err
	}

	var file models.File
	err := s.DB.WithContext(ctx).Preload("Owner").First(&file, "id = ?", fileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading file: %w", err)
	}
	return &file, nil
}

// Open returns the file and its contents for any caller holding READ.
// The caller closes the reader.
func (s *FileService) Open(ctx context.Context, fileID, callerID uuid.UUID) (*models.File, io.ReadCloser, error) {
	file, _, err := s.Access.Authorize(ctx, fileID, callerID, ActionRead)
	if err != nil {
		return nil, nil, err
	}
	return s.openContents(ctx, file)
}

// OpenByToken returns the file and contents behind an active public link.
func (s *FileService) OpenByToken(ctx context.Context, token string) (*models.File, io.ReadCloser, error) {
	file, err := s.Links.Resolve(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	return s.openContents(ctx, file)
}

func (s *FileService) openContents(ctx context.Context, file *models.File) (*models.File, io.ReadCloser, error) {
	if s.Storage == nil {
		return nil, nil, errors.New("byte storage is not configured")
	}
	reader, err := s.Storage.Download(ctx, file.Filename)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil, fmt.Errorf("%w: contents of file %s", ErrNotFound, file.ID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading file contents: %w", err)
	}
	return file, reader, nil
}

// Rename changes the user-visible name. The extension must not change.
func (s *FileService) Rename(ctx context.Context, fileID, callerID uuid.UUID, newOriginalName string) (*models.File, error) {
	file, _, err := s.Access.Authorize(ctx, fileID, callerID, ActionRename)
	if err != nil {
		return nil, err
	}

	newOriginalName, err = cleanOriginalName(newOriginalName)
	if err != nil {
		return nil, err
	}
	if models.NameExtension(newOriginalName) != file.Extension() {
		return nil, fmt.Errorf("%w: extension must remain %q", ErrPolicyViolation, file.Extension())
	}

	result := s.DB.WithContext(ctx).
		Model(&models.File{}).
		Where("id = ?", file.ID).
		Update("original_name", newOriginalName)
	if result.Error != nil {
		return nil, fmt.Errorf("renaming file: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, fileID)
	}

	var updated models.File
	if err := s.DB.WithContext(ctx).First(&updated, "id = ?", file.ID).Error; err != nil {
		return nil, fmt.Errorf("reloading file: %w", err)
	}

	logger.InfoWithUser(callerID.String(), "file_renamed", map[string]interface{}{
		"file_id":  file.ID.String(),
		"old_name": file.OriginalName,
		"new_name": updated.OriginalName,
	})
	return &updated, nil
}

// Delete removes the file together with its shares and links in one
// transaction, then drops the stored contents.
func (s *FileService) Delete(ctx context.Context, fileID, callerID uuid.UUID) error {
	file, role, err := s.Access.Authorize(ctx, fileID, callerID, ActionDelete)
	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", file.ID).Delete(&models.FileLink{}).Error; err != nil {
			return fmt.Errorf("deleting links: %w", err)
		}
		if err := tx.Where("file_id = ?", file.ID).Delete(&models.FileShare{}).Error; err != nil {
			return fmt.Errorf("deleting shares: %w", err)
		}
		result := tx.Delete(&models.File{}, "id = ?", file.ID)
		if result.Error != nil {
			return fmt.Errorf("deleting file: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: file %s", ErrNotFound, file.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.Storage != nil {
		if err := s.Storage.Delete(ctx, file.Filename); err != nil {
			logger.ErrorWithUser(callerID.String(), "file_contents_orphaned", err, map[string]interface{}{
				"file_id":      file.ID.String(),
				"storage_path": file.Filename,
			})
		}
	}

	logger.InfoWithUser(callerID.String(), "file_deleted", map[string]interface{}{
		"file_id":   file.ID.String(),
		"file_name": file.OriginalName,
		"role":      string(role),
	})
	return nil
}

// DeleteOwnedBy deletes every file ownerID owns, with their shares, links
// and contents. It stops at the first failure.
func (s *FileService) DeleteOwnedBy(ctx context.Context, ownerID uuid.UUID) (int, error) {
	files, err := s.ListOwnedBy(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	for i, file := range files {
		if err := s.Delete(ctx, file.ID, ownerID); err != nil {
			return i, err
		}
	}
	return len(files), nil
}

func cleanOriginalName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name cannot be empty", ErrPolicyViolation)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: name cannot contain path separators", ErrPolicyViolation)
	}
	if len(name) > 255 {
		return "", fmt.Errorf("%w: name must be 255 characters or less", ErrPolicyViolation)
	}
	return name, nil
}
