package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pickbox/backend/internal/middleware"
)

type Handlers struct {
	Auth   *AuthHandler
	Users  *UsersHandler
	Files  *FilesHandler
	Shares *SharesHandler
	Links  *LinksHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers, auth *middleware.AuthMiddleware) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", h.Auth.Register)
	authRoutes.Post("/login", h.Auth.Login)
	authRoutes.Get("/me", auth.RequireAuth, h.Auth.Me)
	authRoutes.Put("/me", auth.RequireAuth, h.Auth.UpdateMe)
	authRoutes.Delete("/me", auth.RequireAuth, h.Auth.DeleteMe)
	authRoutes.Put("/password", auth.RequireAuth, h.Auth.ChangePassword)

	api.Get("/users/lookup", auth.RequireAuth, h.Users.Lookup)

	publicRoutes := api.Group("/public/links")
	publicRoutes.Get("/:token", h.Links.PublicGet)
	publicRoutes.Get("/:token/download", h.Links.PublicDownload)

	fileRoutes := api.Group("/files", auth.RequireAuth)
	fileRoutes.Post("/upload", h.Files.Upload)
	fileRoutes.Get("/", h.Files.List)
	fileRoutes.Get("/:id/download", h.Files.Download)
	fileRoutes.Post("/:id/share", h.Shares.ShareFile)
	fileRoutes.Delete("/:id/share/:userId", h.Shares.Unshare)
	fileRoutes.Get("/:id/shares", h.Shares.ListFileShares)
	fileRoutes.Post("/:id/links", h.Links.Create)
	fileRoutes.Get("/:id/links", h.Links.List)
	fileRoutes.Get("/:id", h.Files.Get)
	fileRoutes.Patch("/:id", h.Files.Rename)
	fileRoutes.Delete("/:id", h.Files.Delete)

	linkRoutes := api.Group("/links", auth.RequireAuth)
	linkRoutes.Delete("/token/:token", h.Links.DeleteByToken)
	linkRoutes.Delete("/:linkId", h.Links.Delete)

	api.Get("/shared", auth.RequireAuth, h.Shares.ListSharedWithMe)
}
