package api

import (
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roominai/backend/internal/config"
	"github.com/roominai/backend/internal/credits"
	"github.com/roominai/backend/internal/payments"
	"github.com/roominai/backend/pkg/database"
)

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	db       *database.Clients
	producer sarama.SyncProducer
	ledger   *credits.Ledger
	payments *payments.Client
	logger   *slog.Logger
}

func NewServer(cfg *config.Config, db *database.Clients, producer sarama.SyncProducer, ledger *credits.Ledger, paymentsClient *payments.Client) *Server {
	app := fiber.New()

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status}\n",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.MaxRequests,
		Expiration: cfg.Server.RequestTimeout,
	}))

	server := &Server{
		app:      app,
		cfg:      cfg,
		db:       db,
		producer: producer,
		ledger:   ledger,
		payments: paymentsClient,
		logger:   slog.Default(),
	}

	// Routes
	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	// Monitoring routes
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := s.app.Group("/api")

	// Public routes
	api.Post("/login", s.handleLogin)
	api.Post("/webhook", s.handleWebhook)
	api.Get("/plans", s.handleListPlans)

	// Protected routes
	protected := api.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(s.cfg.JWT.Secret),
	}))
	protected.Post("/profiles", s.handleCreateProfile)
	protected.Get("/profiles/:id", s.handleGetProfile)

	// Generation submission carries its own fixed-window rate limit on
	// top of the credit precondition (5 uploads per IP per day).
	protected.Post("/generate", limiter.New(limiter.Config{
		Max:        s.cfg.Server.GenerateLimit,
		Expiration: s.cfg.Server.GenerateWindow,
	}), s.handleGenerate)
	protected.Get("/generations/:id", s.handleGetGeneration)

	protected.Post("/checkout", s.handleCreateCheckout)

	admin := protected.Group("/admin")
	admin.Get("/profiles", s.handleListProfiles)
	admin.Post("/credits/grant", s.handleGrantCredits)
	admin.Post("/credits/revoke", s.handleRevokeCredits)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}
