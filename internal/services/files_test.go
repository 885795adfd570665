package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pickbox/backend/internal/models"
	"github.com/pickbox/backend/internal/storage"
	"github.com/pickbox/backend/pkg/logger"
)

func TestFileService_CreateAndList(t *testing.T) {
	svc := setupServices(t)
	owner := createTestUser(t, svc.db, "owner@test.com")
	other := createTestUser(t, svc.db, "other@test.com")

	t.Run("create assigns id and timestamps", func(t *testing.T) {
		file, err := svc.files.Create(ctx, owner.ID, "owner/key-1", "report.pdf", "application/pdf", 1024)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if file.ID == uuid.Nil {
			t.Error("expected id to be assigned")
		}
		if file.CreatedAt.IsZero() || file.UpdatedAt.IsZero() {
			t.Error("expected timestamps to be assigned")
		}
		if file.OwnerID != owner.ID {
			t.Errorf("expected owner %s, got %s", owner.ID, file.OwnerID)
		}
	})

	t.Run("create rejects malformed input", func(t *testing.T) {
		cases := []struct {
			name         string
			filename     string
			originalName string
			size         int64
		}{
			{"blank name", "k", "   ", 1},
			{"path in name", "k", "../etc/passwd", 1},
			{"blank key", "", "a.txt", 1},
			{"negative size", "k", "a.txt", -1},
		}
		for _, c := range cases {
			if _, err := svc.files.Create(ctx, owner.ID, c.filename, c.originalName, "text/plain", c.size); !errors.Is(err, ErrPolicyViolation) {
				t.Errorf("%s: expected ErrPolicyViolation, got %v", c.name, err)
			}
		}
	})

	t.Run("list returns only owned files newest first", func(t *testing.T) {
		base := time.Now().Add(-time.Hour)
		older := createTestFile(t, svc.db, other, "older.txt")
		newer := createTestFile(t, svc.db, other, "newer.txt")
		svc.db.Model(older).Update("created_at", base)
		svc.db.Model(newer).Update("created_at", base.Add(30*time.Minute))
		createTestFile(t, svc.db, owner, "not-mine.txt")

		files, err := svc.files.ListOwnedBy(ctx, other.ID)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("expected 2 files, got %d", len(files))
		}
		if files[0].ID != newer.ID || files[1].ID != older.ID {
			t.Fatalf("expected newest first, got %s then %s", files[0].OriginalName, files[1].OriginalName)
		}
	})
}

func TestFileService_GetOwned(t *testing.T) {
	svc := setupServices(t)
	owner := createTestUser(t, svc.db, "owner@test.com")
	viewer := createTestUser(t, svc.db, "viewer@test.com")
	file := createTestFile(t, svc.db, owner, "owned.txt")
	createTestShare(t, svc.db, file, viewer, models.ShareRoleViewer, time.Now())

	if got, err := svc.files.GetOwned(ctx, file.ID, owner.ID); err != nil || got.ID != file.ID {
		t.Fatalf("expected owner lookup to succeed, got %v", err)
	}
	if _, err := svc.files.GetOwned(ctx, file.ID, viewer.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-owner, got %v", err)
	}
	if _, err := svc.files.GetOwned(ctx, uuid.New(), owner.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing file, got %v", err)
	}

	got, err := svc.files.Get(ctx, file.ID, viewer.ID)
	if err != nil {
		t.Fatalf("expected viewer read to succeed, got %v", err)
	}
	if got.Owner == nil || got.Owner.Email != owner.Email {
		t.Fatalf("expected owner to be preloaded, got %+v", got.Owner)
	}
}

func TestFileService_Rename(t *testing.T) {
	svc := setupServices(t)
	owner := createTestUser(t, svc.db, "owner@test.com")
	viewer := createTestUser(t, svc.db, "viewer@test.com")
	editor := createTestUser(t, svc.db, "editor@test.com")

	file := createTestFile(t, svc.db, owner, "report.pdf")
	createTestShare(t, svc.db, file, viewer, models.ShareRoleViewer, time.Now())
	createTestShare(t, svc.db, file, editor, models.ShareRoleEditor, time.Now())

	t.Run("same extension succeeds", func(t *testing.T) {
		renamed, err := svc.files.Rename(ctx, file.ID, owner.ID, "summary.pdf")
		if err != nil {
			t.Fatalf("rename failed: %v", err)
		}
		if renamed.OriginalName != "summary.pdf" {
			t.Fatalf("expected summary.pdf, got %s", renamed.OriginalName)
		}
	})

	t.Run("extension comparison is case-folded", func(t *testing.T) {
		if _, err := svc.files.Rename(ctx, file.ID, owner.ID, "SUMMARY.PDF"); err != nil {
			t.Fatalf("expected case-only extension change to succeed, got %v", err)
		}
	})

	t.Run("changed extension is a policy violation with no write", func(t *testing.T) {
		before, _ := svc.files.GetOwned(ctx, file.ID, owner.ID)

		_, err := svc.files.Rename(ctx, file.ID, owner.ID, "report.docx")
		if !errors.Is(err, ErrPolicyViolation) {
			t.Fatalf("expected ErrPolicyViolation, got %v", err)
		}

		after, _ := svc.files.GetOwned(ctx, file.ID, owner.ID)
		if after.OriginalName != before.OriginalName {
			t.Fatalf("expected name to stay %s, got %s", before.OriginalName, after.OriginalName)
		}
	})

	t.Run("dropping the extension is a policy violation", func(t *testing.T) {
		if _, err := svc.files.Rename(ctx, file.ID, owner.ID, "report"); !errors.Is(err, ErrPolicyViolation) {
			t.Fatalf("expected ErrPolicyViolation, got %v", err)
		}
	})

	t.Run("editor may rename", func(t *testing.T) {
		if _, err := svc.files.Rename(ctx, file.ID, editor.ID, "edited.pdf"); err != nil {
			t.Fatalf("expected editor rename to succeed, got %v", err)
		}
	})

	t.Run("viewer may not rename", func(t *testing.T) {
		if _, err := svc.files.Rename(ctx, file.ID, viewer.ID, "viewed.pdf"); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := svc.files.Rename(ctx, uuid.New(), owner.ID, "x.pdf"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestFileService_UploadAndOpen(t *testing.T) {
	svc := setupServices(t)
	owner := createTestUser(t, svc.db, "owner@test.com")
	viewer := createTestUser(t, svc.db, "viewer@test.com")
	stranger := createTestUser(t, svc.db, "stranger@test.com")

	file, err := svc.files.Upload(ctx, owner.ID, "hello.txt", "", 11, strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if !strings.HasPrefix(file.Filename, owner.ID.String()+"/") || !strings.HasSuffix(file.Filename, ".txt") {
		t.Fatalf("unexpected storage key %q", file.Filename)
	}
	if !strings.HasPrefix(file.MimeType, "text/plain") {
		t.Fatalf("expected mime type from extension, got %q", file.MimeType)
	}
	if !svc.store.Has(file.Filename) {
		t.Fatal("expected contents in storage")
	}

	createTestShare(t, svc.db, file, viewer, models.ShareRoleViewer, time.Now())

	_, reader, err := svc.files.Open(ctx, file.ID, viewer.ID)
	if err != nil {
		t.Fatalf("expected viewer to open file, got %v", err)
	}
	data, _ := io.ReadAll(reader)
	_ = reader.Close()
	if string(data) != "hello world" {
		t.Fatalf("unexpected contents %q", string(data))
	}

	if _, _, err := svc.files.Open(ctx, file.ID, stranger.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected stranger to be forbidden, got %v", err)
	}
}

func TestFileService_Delete(t *testing.T) {
	svc := setupServices(t)
	owner := createTestUser(t, svc.db, "owner@test.com")
	viewer := createTestUser(t, svc.db, "viewer@test.com")
	editor := createTestUser(t, svc.db, "editor@test.com")

	t.Run("cascade removes shares, links and contents", func(t *testing.T) {
		file, err := svc.files.Upload(ctx, owner.ID, "doomed.txt", "text/plain", 4, strings.NewReader("bye!"))
		if err != nil {
			t.Fatalf("upload failed: %v", err)
		}
		createTestShare(t, svc.db, file, viewer, models.ShareRoleViewer, time.Now())
		createTestShare(t, svc.db, file, editor, models.ShareRoleEditor, time.Now())
		link, err := svc.links.CreateLink(ctx, file.ID, owner.ID, nil)
		if err != nil {
			t.Fatalf("create link failed: %v", err)
		}

		if err := svc.files.Delete(ctx, file.ID, owner.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		if n := countRows(t, svc.db, &models.FileShare{}, "file_id = ?", file.ID); n != 0 {
			t.Errorf("expected no shares, found %d", n)
		}
		if n := countRows(t, svc.db, &models.FileLink{}, "file_id = ?", file.ID); n != 0 {
			t.Errorf("expected no links, found %d", n)
		}
		if svc.store.Has(file.Filename) {
			t.Error("expected stored contents to be removed")
		}
		for _, u := range []*models.User{owner, viewer, editor} {
			if role, _ := svc.shares.RoleOf(ctx, file.ID, u.ID); role != RoleNone {
				t.Errorf("expected RoleNone for %s after delete, got %s", u.Email, role)
			}
		}
		if _, err := svc.links.Resolve(ctx, link.Token); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected link to stop resolving, got %v", err)
		}
	})

	t.Run("editor may delete", func(t *testing.T) {
		file := createTestFile(t, svc.db, owner, "shared.txt")
		createTestShare(t, svc.db, file, editor, models.ShareRoleEditor, time.Now())

		if err := svc.files.Delete(ctx, file.ID, editor.ID); err != nil {
			t.Fatalf("expected editor delete to succeed, got %v", err)
		}
	})

	t.Run("viewer may not delete", func(t *testing.T) {
		file := createTestFile(t, svc.db, owner, "kept.txt")
		createTestShare(t, svc.db, file, viewer, models.ShareRoleViewer, time.Now())

		if err := svc.files.Delete(ctx, file.ID, viewer.ID); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if n := countRows(t, svc.db, &models.File{}, "id = ?", file.ID); n != 1 {
			t.Fatal("expected file to survive forbidden delete")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if err := svc.files.Delete(ctx, uuid.New(), owner.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestFileService_UploadAll(t *testing.T) {
	t.Run("stores every item", func(t *testing.T) {
		svc := setupServices(t)
		owner := createTestUser(t, svc.db, "owner@test.com")

		files, err := svc.files.UploadAll(ctx, owner.ID, []UploadItem{
			{OriginalName: "a.txt", Size: 1, Body: strings.NewReader("a")},
			{OriginalName: "b.txt", Size: 1, Body: strings.NewReader("b")},
		})
		if err != nil {
			t.Fatalf("upload failed: %v", err)
		}
		if len(files) != 2 || svc.store.Len() != 2 {
			t.Fatalf("expected 2 files stored, got %d records and %d objects", len(files), svc.store.Len())
		}
	})

	t.Run("invalid name stores nothing", func(t *testing.T) {
		svc := setupServices(t)
		owner := createTestUser(t, svc.db, "owner@test.com")

		_, err := svc.files.UploadAll(ctx, owner.ID, []UploadItem{
			{OriginalName: "ok.txt", Size: 2, Body: strings.NewReader("ok")},
			{OriginalName: "..", Size: 2, Body: strings.NewReader("no")},
		})
		if !errors.Is(err, ErrPolicyViolation) {
			t.Fatalf("expected ErrPolicyViolation, got %v", err)
		}
		if n := countRows(t, svc.db, &models.File{}, "owner_id = ?", owner.ID); n != 0 {
			t.Fatalf("expected no files recorded, found %d", n)
		}
		if svc.store.Len() != 0 {
			t.Fatalf("expected no stored objects, found %d", svc.store.Len())
		}
	})

	t.Run("storage failure removes earlier items", func(t *testing.T) {
		svc := setupServices(t)
		owner := createTestUser(t, svc.db, "owner@test.com")

		_, err := svc.files.UploadAll(ctx, owner.ID, []UploadItem{
			{OriginalName: "first.txt", Size: 5, Body: strings.NewReader("first")},
			{OriginalName: "second.txt", Size: 6, Body: failingReader{}},
		})
		if err == nil {
			t.Fatal("expected upload to fail")
		}
		if n := countRows(t, svc.db, &models.File{}, "owner_id = ?", owner.ID); n != 0 {
			t.Fatalf("expected first file to be rolled back, found %d", n)
		}
		if svc.store.Len() != 0 {
			t.Fatalf("expected no stored objects, found %d", svc.store.Len())
		}
	})
}

type stickyStore struct {
	*storage.MemoryStore
}

func (stickyStore) Delete(context.Context, string) error {
	return errors.New("bucket unavailable")
}

func TestFileService_UploadLogsOrphanedContents(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(io.Discard) })

	svc := setupServices(t)
	owner := createTestUser(t, svc.db, "owner@test.com")
	store := stickyStore{MemoryStore: storage.NewMemoryStore()}
	svc.files.Storage = store

	if err := svc.db.Migrator().DropTable(&models.File{}); err != nil {
		t.Fatalf("failed dropping files table: %v", err)
	}

	if _, err := svc.files.Upload(ctx, owner.ID, "lost.txt", "text/plain", 4, strings.NewReader("lost")); err == nil {
		t.Fatal("expected upload to fail without a files table")
	}
	if store.Len() != 1 {
		t.Fatalf("expected contents to remain after failed delete, found %d objects", store.Len())
	}
	if !strings.Contains(buf.String(), `"action":"file_contents_orphaned"`) {
		t.Fatalf("expected orphaned contents to be logged, got %s", buf.String())
	}
}
