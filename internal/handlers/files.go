package handlers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pickbox/backend/internal/middleware"
	"github.com/pickbox/backend/internal/services"
	"github.com/pickbox/backend/pkg/logger"
	"github.com/pickbox/backend/pkg/utils"
)

const maxFilesPerUpload = 10

type FilesHandler struct {
	Files         *services.FileService
	MaxUploadSize int64
}

func NewFilesHandler(files *services.FileService, maxUploadSize int64) *FilesHandler {
	return &FilesHandler{Files: files, MaxUploadSize: maxUploadSize}
}

func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "multipart form is required")
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "at least one file is required")
	}
	if len(headers) > maxFilesPerUpload {
		return utils.Error(c, fiber.StatusBadRequest, fmt.Sprintf("at most %d files per upload", maxFilesPerUpload))
	}
	for _, header := range headers {
		if h.MaxUploadSize > 0 && header.Size > h.MaxUploadSize {
			return utils.Error(c, fiber.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds the maximum upload size", header.Filename))
		}
	}

	items := make([]services.UploadItem, 0, len(headers))
	for _, header := range headers {
		stream, err := header.Open()
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
		}
		defer stream.Close()

		items = append(items, services.UploadItem{
			OriginalName: filepath.Base(strings.TrimSpace(header.Filename)),
			MimeType:     header.Header.Get("Content-Type"),
			Size:         header.Size,
			Body:         stream,
		})
	}

	uploaded, err := h.Files.UploadAll(c.Context(), currentUser.ID, items)
	if err != nil {
		return writeServiceError(c, err, "user not found")
	}

	return utils.Success(c, fiber.StatusCreated, uploaded)
}

func (h *FilesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	files, err := h.Files.ListOwnedBy(c.Context(), currentUser.ID)
	if err != nil {
		return writeServiceError(c, err, "files not found")
	}
	return utils.Success(c, fiber.StatusOK, files)
}

func (h *FilesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	file, err := h.Files.Get(c.Context(), fileID, currentUser.ID)
	if err != nil {
		return writeReadError(c, err, "file not found")
	}
	return utils.Success(c, fiber.StatusOK, file)
}

func (h *FilesHandler) Download(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	file, contents, err := h.Files.Open(c.Context(), fileID, currentUser.ID)
	if err != nil {
		return writeReadError(c, err, "file not found")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_downloaded", map[string]interface{}{
		"file_id":   file.ID.String(),
		"file_name": file.OriginalName,
		"file_size": file.Size,
	})

	c.Set("Content-Type", file.MimeType)
	c.Set("Content-Disposition", attachmentDisposition(file.OriginalName))
	return c.SendStream(contents, int(file.Size))
}

type renameFileRequest struct {
	OriginalName string `json:"originalName" validate:"required,max=255"`
}

func (h *FilesHandler) Rename(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var req renameFileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := h.Files.Rename(c.Context(), fileID, currentUser.ID, req.OriginalName)
	if err != nil {
		return writeServiceError(c, err, "file not found")
	}
	return utils.Success(c, fiber.StatusOK, file)
}

func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	if err := h.Files.Delete(c.Context(), fileID, currentUser.ID); err != nil {
		return writeServiceError(c, err, "file not found")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}
