package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pickbox/backend/internal/middleware"
	"github.com/pickbox/backend/internal/services"
	"github.com/pickbox/backend/pkg/logger"
	"github.com/pickbox/backend/pkg/utils"
)

type LinksHandler struct {
	Links *services.LinkService
	Files *services.FileService
}

func NewLinksHandler(links *services.LinkService, files *services.FileService) *LinksHandler {
	return &LinksHandler{Links: links, Files: files}
}

type createLinkRequest struct {
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (h *LinksHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var req createLinkRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
		}
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return utils.Error(c, fiber.StatusBadRequest, "expiresAt must be in the future")
	}

	link, err := h.Links.CreateLink(c.Context(), fileID, currentUser.ID, req.ExpiresAt)
	if err != nil {
		return writeServiceError(c, err, "file not found")
	}
	return utils.Success(c, fiber.StatusCreated, link)
}

func (h *LinksHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	links, err := h.Links.ListFor(c.Context(), fileID, currentUser.ID)
	if err != nil {
		return writeReadError(c, err, "file not found")
	}
	return utils.Success(c, fiber.StatusOK, links)
}

func (h *LinksHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	linkID, err := parseUUID(c.Params("linkId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid link id")
	}

	if err := h.Links.DeleteByID(c.Context(), linkID, currentUser.ID); err != nil {
		return writeServiceError(c, err, "link not found")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}

func (h *LinksHandler) DeleteByToken(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.Links.DeleteByToken(c.Context(), c.Params("token"), currentUser.ID); err != nil {
		return writeServiceError(c, err, "link not found")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}

type publicFileResponse struct {
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicGet describes the file behind a link without revealing who owns it.
func (h *LinksHandler) PublicGet(c *fiber.Ctx) error {
	file, err := h.Links.Resolve(c.Context(), c.Params("token"))
	if err != nil {
		return writeReadError(c, err, "link not found or expired")
	}

	return utils.Success(c, fiber.StatusOK, publicFileResponse{
		OriginalName: file.OriginalName,
		MimeType:     file.MimeType,
		Size:         file.Size,
		CreatedAt:    file.CreatedAt,
	})
}

func (h *LinksHandler) PublicDownload(c *fiber.Ctx) error {
	file, contents, err := h.Files.OpenByToken(c.Context(), c.Params("token"))
	if err != nil {
		return writeReadError(c, err, "link not found or expired")
	}

	logger.Info("public_link_download", map[string]interface{}{
		"file_id": file.ID.String(),
		"ip":      c.IP(),
	})

	c.Set("Content-Type", file.MimeType)
	c.Set("Content-Disposition", attachmentDisposition(file.OriginalName))
	return c.SendStream(contents, int(file.Size))
}
