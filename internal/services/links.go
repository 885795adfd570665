package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pickbox/backend/internal/models"
	"github.com/pickbox/backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	linkTokenBytes          = 32
	defaultMaxTokenAttempts = 5
)

// NewLinkToken returns 32 random bytes, hex encoded.
func NewLinkToken() (string, error) {
	raw := make([]byte, linkTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

type LinkService struct {
	DB               *gorm.DB
	Access           *AccessService
	Now              func() time.Time
	NewToken         func() (string, error)
	MaxTokenAttempts int
}

func NewLinkService(db *gorm.DB, access *AccessService, maxTokenAttempts int) *LinkService {
	if maxTokenAttempts < 1 {
		maxTokenAttempts = defaultMaxTokenAttempts
	}
	return &LinkService{
		DB:               db,
		Access:           access,
		Now:              time.Now,
		NewToken:         NewLinkToken,
		MaxTokenAttempts: maxTokenAttempts,
	}
}

// CreateLink issues a public link for the file. A nil expiresAt never expires.
func (s *LinkService) CreateLink(ctx context.Context, fileID, ownerID uuid.UUID, expiresAt *time.Time) (*models.FileLink, error) {
	file, _, err := s.Access.Authorize(ctx, fileID, ownerID, ActionLinkManage)
	if err != nil {
		return nil, err
	}

	attempts := s.MaxTokenAttempts
	if attempts < 1 {
		attempts = defaultMaxTokenAttempts
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		token, err := s.NewToken()
		if err != nil {
			return nil, fmt.Errorf("generating link token: %w", err)
		}

		taken, err := s.tokenTaken(ctx, token)
		if err != nil {
			return nil, err
		}
		if taken {
			logger.Warn("link_token_collision", map[string]interface{}{
				"file_id": file.ID.String(),
				"attempt": attempt,
			})
			continue
		}

		link := models.FileLink{
			FileID:    file.ID,
			Token:     token,
			ExpiresAt: expiresAt,
			CreatedAt: s.Now(),
		}
		err = s.DB.WithContext(ctx).Create(&link).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			logger.Warn("link_token_collision", map[string]interface{}{
				"file_id": file.ID.String(),
				"attempt": attempt,
			})
			continue
		}
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, fmt.Errorf("%w: file %s", ErrNotFound, file.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("creating link: %w", err)
		}

		logger.InfoWithUser(ownerID.String(), "link_created", map[string]interface{}{
			"file_id":    file.ID.String(),
			"link_id":    link.ID.String(),
			"expires_at": link.ExpiresAt,
		})
		return &link, nil
	}

	return nil, fmt.Errorf("%w: no unique link token after %d attempts", ErrTransient, attempts)
}

// Resolve returns the file behind an active link. Unknown and expired tokens
// both yield ErrNotFound.
func (s *LinkService) Resolve(ctx context.Context, token string) (*models.File, error) {
	link, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if link.IsExpired(s.Now()) {
		return nil, fmt.Errorf("%w: link not found or expired", ErrNotFound)
	}

	var file models.File
	err = s.DB.WithContext(ctx).First(&file, "id = ?", link.FileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: link not found or expired", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading file: %w", err)
	}
	return &file, nil
}

func (s *LinkService) ListFor(ctx context.Context, fileID, ownerID uuid.UUID) ([]models.FileLink, error) {
	file, _, err := s.Access.Authorize(ctx, fileID, ownerID, ActionLinkManage)
	if err != nil {
		return nil, err
	}

	var links []models.FileLink
	if err := s.DB.WithContext(ctx).
		Where("file_id = ?", file.ID).
		Order("created_at DESC").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	return links, nil
}

func (s *LinkService) DeleteByID(ctx context.Context, linkID, ownerID uuid.UUID) error {
	var link models.FileLink
	err := s.DB.WithContext(ctx).First(&link, "id = ?", linkID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: link %s", ErrNotFound, linkID)
	}
	if err != nil {
		return fmt.Errorf("loading link: %w", err)
	}
	return s.delete(ctx, &link, ownerID)
}

func (s *LinkService) DeleteByToken(ctx context.Context, token string, ownerID uuid.UUID) error {
	link, err := s.findByToken(ctx, token)
	if err != nil {
		return err
	}
	return s.delete(ctx, link, ownerID)
}

func (s *LinkService) delete(ctx context.Context, link *models.FileLink, ownerID uuid.UUID) error {
	if _, _, err := s.Access.Authorize(ctx, link.FileID, ownerID, ActionLinkManage); err != nil {
		return err
	}

	result := s.DB.WithContext(ctx).Delete(&models.FileLink{}, "id = ?", link.ID)
	if result.Error != nil {
		return fmt.Errorf("deleting link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: link %s", ErrNotFound, link.ID)
	}

	logger.InfoWithUser(ownerID.String(), "link_deleted", map[string]interface{}{
		"file_id": link.FileID.String(),
		"link_id": link.ID.String(),
	})
	return nil
}

func (s *LinkService) findByToken(ctx context.Context, token string) (*models.FileLink, error) {
	if !isLinkToken(token) {
		return nil, fmt.Errorf("%w: link not found or expired", ErrNotFound)
	}

	var link models.FileLink
	err := s.DB.WithContext(ctx).First(&link, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: link not found or expired", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading link: %w", err)
	}
	return &link, nil
}

func (s *LinkService) tokenTaken(ctx context.Context, token string) (bool, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.FileLink{}).Where("token = ?", token).Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking link token: %w", err)
	}
	return count > 0, nil
}

func isLinkToken(token string) bool {
	if len(token) != linkTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
