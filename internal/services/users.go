package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pickbox/backend/internal/models"
	"gorm.io/gorm"
)

var ErrEmailTaken = errors.New("email already registered")

// UserDirectory is the identity capability the sharing core consumes.
type UserDirectory interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type UserService struct {
	DB *gorm.DB
}

var _ UserDirectory = (*UserService)(nil)

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

func (s *UserService) Create(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	user := models.User{
		Email:        strings.TrimSpace(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
	}

	err := s.DB.WithContext(ctx).Create(&user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &user, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &user, nil
}

func (s *UserService) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("counting users: %w", err)
	}
	return count > 0, nil
}

// FindByEmail matches the email exactly as stored.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "email = ?", strings.TrimSpace(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no user with that email", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &user, nil
}

func (s *UserService) UpdateName(ctx context.Context, id uuid.UUID, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrPolicyViolation)
	}

	result := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("name", name)
	if result.Error != nil {
		return nil, fmt.Errorf("updating user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return s.Get(ctx, id)
}

func (s *UserService) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	result := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if result.Error != nil {
		return fmt.Errorf("updating password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return nil
}

// Delete removes the account and every share granted to it. Owned files must
// be deleted first; an account that still owns files is a policy violation.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&models.File{}).Where("owner_id = ?", id).Count(&owned).Error; err != nil {
			return fmt.Errorf("counting owned files: %w", err)
		}
		if owned > 0 {
			return fmt.Errorf("%w: account still owns %d files", ErrPolicyViolation, owned)
		}

		if err := tx.Where("user_id = ?", id).Delete(&models.FileShare{}).Error; err != nil {
			return fmt.Errorf("deleting shares: %w", err)
		}
		result := tx.Delete(&models.User{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("deleting user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return nil
	})
}
