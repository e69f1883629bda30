// Package app wires configuration, storage and handlers into a fiber app.
package app

import (
	"errors"
	"fmt"
	"io"
	"time"

	"dealhub/internal/config"
	"dealhub/internal/handlers"
	"dealhub/internal/metrics"
	"dealhub/internal/middleware"
	"dealhub/internal/models"
	"dealhub/internal/repositories"
	"dealhub/internal/revocation"
	"dealhub/internal/services"
	"dealhub/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the external resources of the app. Only DB is required.
type Deps struct {
	DB *gorm.DB
	// Revocations defaults to an in-process store.
	Revocations revocation.Store
	// Events may be nil when no broker is configured.
	Events services.EventPublisher
	// Images defaults to the store selected by IMAGE_STORAGE.
	Images storage.ImageStore
}

// App is the assembled HTTP server and the services behind it.
type App struct {
	Fiber        *fiber.App
	Auth         *services.AuthService
	Users        *services.UserService
	Deals        *services.DealService
	ImageCleanup *services.ImageCleanup

	accessLog io.Closer
}

// New builds the fiber app with every route mounted at the root and under /api.
func New(cfg *config.Config, deps Deps) (*App, error) {
	if deps.DB == nil {
		return nil, errors.New("app: a database is required")
	}

	images := deps.Images
	if images == nil {
		var err error
		if images, err = NewImageStore(cfg, deps.DB); err != nil {
			return nil, err
		}
	}
	revocations := deps.Revocations
	if revocations == nil {
		revocations = revocation.NewMemoryStore(cfg.TokenTTL)
	}

	userRepo := repositories.NewGORMUserRepository(deps.DB)
	dealRepo := repositories.NewGORMDealRepository(deps.DB)

	authService := services.NewAuthService(userRepo, revocations, cfg.JWTSecret, cfg.TokenTTL)
	userService := services.NewUserService(userRepo, authService, deps.Events, cfg.OwnershipCheck)
	dealService := services.NewDealService(services.DealServiceConfig{
		Deals:          dealRepo,
		Images:         images,
		Events:         deps.Events,
		Strategy:       cfg.ImageStorage,
		OwnershipCheck: cfg.OwnershipCheck,
	})

	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	dealHandler := handlers.NewDealHandler(dealService, int64(cfg.MaxUploadBytes))

	app := fiber.New(fiber.Config{
		AppName:      "dealhub",
		BodyLimit:    cfg.MaxUploadBytes*models.MaxDealImages + 1<<20,
		ErrorHandler: errorHandler,
	})

	accessLog := logrus.StandardLogger().WriterLevel(logrus.InfoLevel)
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${locals:requestid} ${status} - ${method} ${path} ${latency}\n",
		Output: accessLog,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(metrics.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	authRequired := middleware.AuthRequired(authService)
	for _, router := range []fiber.Router{app, app.Group("/api")} {
		authHandler.RegisterRoutes(router)
		userHandler.RegisterRoutes(router, authRequired)
		dealHandler.RegisterRoutes(router, authRequired)
	}

	return &App{
		Fiber:        app,
		Auth:         authService,
		Users:        userService,
		Deals:        dealService,
		ImageCleanup: services.NewImageCleanup(images),
		accessLog:    accessLog,
	}, nil
}

// NewImageStore returns the image store selected by cfg.ImageStorage.
func NewImageStore(cfg *config.Config, db *gorm.DB) (storage.ImageStore, error) {
	switch cfg.ImageStorage {
	case "disk":
		return storage.NewDiskStore(cfg.UploadDir)
	case "blob":
		return storage.NewBlobStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported image storage %q", cfg.ImageStorage)
	}
}

// Shutdown stops the HTTP server and flushes the access log.
func (a *App) Shutdown() error {
	err := a.Fiber.Shutdown()
	if closeErr := a.accessLog.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// errorHandler renders errors that escape the handlers, such as unknown
// routes or oversized bodies, in the usual JSON shape.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code == fiber.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.Path()).Error("Unhandled error")
		return c.Status(code).JSON(fiber.Map{"message": "Internal server error"})
	}
	return c.Status(code).JSON(fiber.Map{"message": err.Error()})
}
