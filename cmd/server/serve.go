package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pickbox/backend/internal/database"
	"github.com/pickbox/backend/internal/handlers"
	"github.com/pickbox/backend/internal/middleware"
	"github.com/pickbox/backend/internal/services"
	"github.com/pickbox/backend/internal/storage"
	"github.com/pickbox/backend/pkg/logger"
	"github.com/pickbox/backend/pkg/utils"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func newObjectStore() (storage.ObjectStore, error) {
	if cfg.DB.Driver == "sqlite" {
		logger.Warn("storage_in_memory", map[string]interface{}{
			"reason": "sqlite driver selected; file contents are not persisted",
		})
		return storage.NewMemoryStore(), nil
	}

	client, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("minio initialization failed: %w", err)
	}
	if err := client.EnsureBucket(context.Background()); err != nil {
		return nil, fmt.Errorf("failed ensuring minio bucket: %w", err)
	}
	return client, nil
}

func serve() error {
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	store, err := newObjectStore()
	if err != nil {
		return err
	}

	userService := services.NewUserService(db)
	accessService := services.NewAccessService(db)
	linkService := services.NewLinkService(db, accessService, cfg.Links.MaxTokenAttempts)
	fileService := services.NewFileService(db, accessService, linkService, store)
	shareService := services.NewShareService(db, accessService, userService)

	h := &handlers.Handlers{
		Auth:   handlers.NewAuthHandler(userService, fileService),
		Users:  handlers.NewUsersHandler(userService),
		Files:  handlers.NewFilesHandler(fileService, cfg.Server.MaxUploadSize),
		Shares: handlers.NewSharesHandler(shareService),
		Links:  handlers.NewLinksHandler(linkService, fileService),
	}

	app := fiber.New(fiber.Config{BodyLimit: cfg.Server.BodyLimitMB * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())
	handlers.RegisterRoutes(app, h, middleware.NewAuthMiddleware(userService))

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":          cfg.Server.Port,
		"address":       listenAddr,
		"body_limit_mb": cfg.Server.BodyLimitMB,
		"db_driver":     cfg.DB.Driver,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
		return nil
	case err := <-errCh:
		return err
	}
}
