package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pickbox/backend/internal/middleware"
	"github.com/pickbox/backend/internal/services"
	"github.com/pickbox/backend/pkg/utils"
)

type UsersHandler struct {
	Users *services.UserService
}

func NewUsersHandler(users *services.UserService) *UsersHandler {
	return &UsersHandler{Users: users}
}

// Lookup resolves an exact email to a user summary so the share dialog can
// confirm a recipient before sharing.
func (h *UsersHandler) Lookup(c *fiber.Ctx) error {
	if middleware.GetCurrentUser(c) == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email query parameter is required")
	}

	user, err := h.Users.FindByEmail(c.Context(), email)
	if err != nil {
		return writeServiceError(c, err, "user not found")
	}

	return utils.Success(c, fiber.StatusOK, user.Summary())
}
