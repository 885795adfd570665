package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pickbox/backend/internal/middleware"
	"github.com/pickbox/backend/internal/models"
	"github.com/pickbox/backend/internal/services"
	"github.com/pickbox/backend/pkg/utils"
)

type SharesHandler struct {
	Shares *services.ShareService
}

func NewSharesHandler(shares *services.ShareService) *SharesHandler {
	return &SharesHandler{Shares: shares}
}

type createShareRequest struct {
	UserID *uuid.UUID `json:"userID" validate:"required_without=Email"`
	Email  string     `json:"email" validate:"omitempty,email"`
	Role   string     `json:"role" validate:"required,oneof=VIEWER EDITOR"`
}

func (h *SharesHandler) ShareFile(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var req createShareRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))

	if err := utils.ValidateStruct(req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	if req.UserID != nil && req.Email != "" {
		return utils.Error(c, fiber.StatusBadRequest, "exactly one of userID or email is required")
	}

	role := models.ShareRole(req.Role)
	var share *models.FileShare
	if req.UserID != nil {
		share, err = h.Shares.Share(c.Context(), fileID, currentUser.ID, *req.UserID, role)
	} else {
		share, err = h.Shares.ShareByEmail(c.Context(), fileID, currentUser.ID, req.Email, role)
	}
	if err != nil {
		return writeServiceError(c, err, "file not found")
	}

	return utils.Success(c, fiber.StatusOK, share)
}

func (h *SharesHandler) Unshare(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}
	targetID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.Shares.Unshare(c.Context(), fileID, currentUser.ID, targetID); err != nil {
		return writeServiceError(c, err, "file not found")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"revoked": true})
}

type fileShareResponse struct {
	UserID    uuid.UUID          `json:"userID"`
	Role      models.ShareRole   `json:"role"`
	User      models.UserSummary `json:"user"`
	CreatedAt string             `json:"createdAt"`
}

func (h *SharesHandler) ListFileShares(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	shares, err := h.Shares.ListSharesOf(c.Context(), fileID, currentUser.ID)
	if err != nil {
		return writeReadError(c, err, "file not found")
	}

	response := make([]fileShareResponse, 0, len(shares))
	for _, share := range shares {
		entry := fileShareResponse{
			UserID:    share.UserID,
			Role:      share.Role,
			CreatedAt: share.CreatedAt.UTC().Format(time.RFC3339),
		}
		if share.User != nil {
			entry.User = share.User.Summary()
		}
		response = append(response, entry)
	}
	return utils.Success(c, fiber.StatusOK, response)
}

type sharedFileResponse struct {
	File     *models.File        `json:"file"`
	Role     models.ShareRole    `json:"role"`
	Owner    *models.UserSummary `json:"owner,omitempty"`
	SharedAt string              `json:"sharedAt"`
}

func (h *SharesHandler) ListSharedWithMe(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	shares, err := h.Shares.ListSharedWithMe(c.Context(), currentUser.ID)
	if err != nil {
		return writeServiceError(c, err, "shares not found")
	}

	response := make([]sharedFileResponse, 0, len(shares))
	for _, share := range shares {
		if share.File == nil {
			continue
		}
		entry := sharedFileResponse{
			File:     share.File,
			Role:     share.Role,
			SharedAt: share.CreatedAt.UTC().Format(time.RFC3339),
		}
		if share.File.Owner != nil {
			owner := share.File.Owner.Summary()
			entry.Owner = &owner
			share.File.Owner = nil
		}
		response = append(response, entry)
	}
	return utils.Success(c, fiber.StatusOK, response)
}
