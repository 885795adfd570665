package services

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/pickbox/backend/internal/models"
	"github.com/pickbox/backend/internal/storage"
	"gorm.io/gorm"
)

type testServices struct {
	db     *gorm.DB
	store  *storage.MemoryStore
	users  *UserService
	access *AccessService
	files  *FileService
	shares *ShareService
	links  *LinkService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(
		&models.User{},
		&models.File{},
		&models.FileShare{},
		&models.FileLink{},
	); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}
	return db
}

func setupServices(t *testing.T) *testServices {
	t.Helper()
	db := setupTestDB(t)
	store := storage.NewMemoryStore()
	users := NewUserService(db)
	access := NewAccessService(db)
	links := NewLinkService(db, access, 5)
	return &testServices{
		db:     db,
		store:  store,
		users:  users,
		access: access,
		files:  NewFileService(db, access, links, store),
		shares: NewShareService(db, access, users),
		links:  links,
	}
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		Name:         "Test User",
		PasswordHash: "hash",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user %s: %v", email, err)
	}
	return user
}

func createTestFile(t *testing.T, db *gorm.DB, owner *models.User, name string) *models.File {
	t.Helper()
	file := &models.File{
		OwnerID:      owner.ID,
		Filename:     owner.ID.String() + "/" + uuid.New().String(),
		OriginalName: name,
		MimeType:     "application/octet-stream",
		Size:         42,
	}
	if err := db.Create(file).Error; err != nil {
		t.Fatalf("failed creating file %s: %v", name, err)
	}
	return file
}

func createTestShare(t *testing.T, db *gorm.DB, file *models.File, user *models.User, role models.ShareRole, createdAt time.Time) {
	t.Helper()
	share := &models.FileShare{
		FileID:    file.ID,
		UserID:    user.ID,
		Role:      role,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := db.Create(share).Error; err != nil {
		t.Fatalf("failed creating share: %v", err)
	}
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		t.Fatalf("failed counting rows: %v", err)
	}
	return count
}

var ctx = context.Background()
