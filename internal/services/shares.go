package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pickbox/backend/internal/models"
	"github.com/pickbox/backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ShareService struct {
	DB     *gorm.DB
	Access *AccessService
	Users  UserDirectory
}

func NewShareService(db *gorm.DB, access *AccessService, users UserDirectory) *ShareService {
	return &ShareService{DB: db, Access: access, Users: users}
}

// Share grants role on the file to targetUserID, replacing any earlier role
// for the same pair.
func (s *ShareService) Share(ctx context.Context, fileID, ownerID, targetUserID uuid.UUID, role models.ShareRole) (*models.FileShare, error) {
	file, _, err := s.Access.Authorize(ctx, fileID, ownerID, ActionShareManage)
	if err != nil {
		return nil, err
	}

	exists, err := s.Users.UserExists(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: user not found", ErrInvalidTarget)
	}

	return s.upsert(ctx, file, targetUserID, role)
}

// ShareByEmail is Share with the target looked up by email. Ownership is
// checked first, so a non-owner gets ErrForbidden whatever the email.
func (s *ShareService) ShareByEmail(ctx context.Context, fileID, ownerID uuid.UUID, email string, role models.ShareRole) (*models.FileShare, error) {
	file, _, err := s.Access.Authorize(ctx, fileID, ownerID, ActionShareManage)
	if err != nil {
		return nil, err
	}

	target, err := s.Users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: user not found", ErrInvalidTarget)
	}
	if err != nil {
		return nil, err
	}

	return s.upsert(ctx, file, target.ID, role)
}

func (s *ShareService) upsert(ctx context.Context, file *models.File, targetUserID uuid.UUID, role models.ShareRole) (*models.FileShare, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role must be VIEWER or EDITOR", ErrInvalidTarget)
	}
	if targetUserID == file.OwnerID {
		return nil, fmt.Errorf("%w: cannot share file with yourself", ErrInvalidTarget)
	}

	share := models.FileShare{
		FileID: file.ID,
		UserID: targetUserID,
		Role:   role,
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(&share).Error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return nil, fmt.Errorf("%w: file or user no longer exists", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("saving share: %w", err)
	}

	var saved models.FileShare
	if err := s.DB.WithContext(ctx).
		Preload("File").
		Preload("User").
		First(&saved, "file_id = ? AND user_id = ?", file.ID, targetUserID).Error; err != nil {
		return nil, fmt.Errorf("reloading share: %w", err)
	}

	logger.InfoWithUser(file.OwnerID.String(), "file_shared", map[string]interface{}{
		"file_id":             file.ID.String(),
		"shared_with_user_id": targetUserID.String(),
		"role":                string(saved.Role),
	})
	return &saved, nil
}

// Unshare revokes targetUserID's role. Revoking a share that does not exist succeeds.
func (s *ShareService) Unshare(ctx context.Context, fileID, ownerID, targetUserID uuid.UUID) error {
	file, _, err := s.Access.Authorize(ctx, fileID, ownerID, ActionShareManage)
	if err != nil {
		return err
	}

	result := s.DB.WithContext(ctx).
		Where("file_id = ? AND user_id = ?", file.ID, targetUserID).
		Delete(&models.FileShare{})
	if result.Error != nil {
		return fmt.Errorf("deleting share: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		logger.InfoWithUser(ownerID.String(), "file_unshared", map[string]interface{}{
			"file_id":             file.ID.String(),
			"shared_with_user_id": targetUserID.String(),
		})
	}
	return nil
}

func (s *ShareService) ListSharesOf(ctx context.Context, fileID, ownerID uuid.UUID) ([]models.FileShare, error) {
	file, _, err := s.Access.Authorize(ctx, fileID, ownerID, ActionShareManage)
	if err != nil {
		return nil, err
	}

	var shares []models.FileShare
	if err := s.DB.WithContext(ctx).
		Preload("User").
		Where("file_id = ?", file.ID).
		Order("created_at DESC").
		Find(&shares).Error; err != nil {
		return nil, fmt.Errorf("listing shares: %w", err)
	}
	return shares, nil
}

// ListSharedWithMe returns the shares granted to userID, newest first, with
// each file and its owner attached.
func (s *ShareService) ListSharedWithMe(ctx context.Context, userID uuid.UUID) ([]models.FileShare, error) {
	var shares []models.FileShare
	if err := s.DB.WithContext(ctx).
		Preload("File.Owner").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&shares).Error; err != nil {
		return nil, fmt.Errorf("listing shared files: %w", err)
	}
	return shares, nil
}

// CanAccess is the read gate: owner or any share, regardless of role.
func (s *ShareService) CanAccess(ctx context.Context, fileID, userID uuid.UUID) (bool, error) {
	role, err := s.RoleOf(ctx, fileID, userID)
	if err != nil {
		return false, err
	}
	return role != RoleNone, nil
}

func (s *ShareService) RoleOf(ctx context.Context, fileID, userID uuid.UUID) (Role, error) {
	return s.Access.RoleOf(ctx, fileID, userID)
}
