package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"siteforge/internal/agents"
	"siteforge/internal/ai"
	"siteforge/internal/auth"
	"siteforge/internal/config"
	"siteforge/internal/db"
	"siteforge/internal/generator"
	"siteforge/internal/handlers"
	"siteforge/internal/logging"
	"siteforge/internal/metrics"
	"siteforge/internal/middleware"
	"siteforge/internal/payments"
	"siteforge/internal/tokens"
	"siteforge/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Running off plain environment variables is fine.
	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load("../.env")
	}

	logging.Init()
	defer logging.Sync()
	log := logging.L()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Seed(); err != nil {
		log.Warn("template seeding failed", zap.Error(err))
	}

	redisClient, err := db.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("failed to configure redis", zap.Error(err))
	}
	defer redisClient.Close()

	hub := websocket.NewHub(log)
	go hub.Run()
	defer hub.Shutdown()

	ledger := tokens.NewLedger(database.DB, redisClient, log)
	authService := auth.NewService(database.DB, cfg.JWTSecret)
	registry := agents.NewRegistry()
	store := agents.NewSessionStore(database.DB, hub, log)
	orch := agents.NewOrchestrator(registry, store, log)
	orch.SetAgentTimeout(cfg.AgentTimeout)

	var copywriter *ai.Copywriter
	if cfg.OpenRouterAPIKey != "" {
		copywriter = ai.NewCopywriter(ai.NewOpenRouterClient(cfg.OpenRouterAPIKey), cfg.CopyModel)
	}

	gen := generator.NewService(database.DB, ledger, store, orch, copywriter, log)
	stripeService := payments.NewStripeService(database.DB, ledger, cfg.StripeSecretKey, log)
	h := handlers.NewHandler(database.DB, authService, ledger, gen, hub, stripeService, log)

	router := buildRouter(cfg, h, authService)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
}

func buildRouter(cfg *config.Config, h *handlers.Handler, authService *auth.Service) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
		metrics.PrometheusMiddleware(),
	)

	router.GET("/health", h.Health)
	router.GET("/metrics", metrics.PrometheusHandler())

	api := router.Group("/api")
	api.Use(middleware.RateLimit(cfg.RateLimitPerMinute, cfg.RateLimitBurst))

	// Public
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)
	api.GET("/billing/packs", h.GetTokenPacks)
	api.POST("/billing/webhook", h.StripeWebhook)
	api.GET("/templates", h.GetTemplates)
	api.GET("/community", h.GetCommunityProjects)

	// Authenticated
	authed := api.Group("")
	authed.Use(middleware.RequireAuth(authService))
	{
		authed.POST("/generate", h.Generate)
		authed.POST("/generate/estimate", h.EstimateCost)

		authed.GET("/projects", h.GetProjects)
		authed.GET("/projects/:id", h.GetProject)
		authed.PUT("/projects/:id", h.UpdateProject)
		authed.DELETE("/projects/:id", h.DeleteProject)
		authed.POST("/projects/:id/publish", h.PublishProject)
		authed.POST("/projects/:id/unpublish", h.UnpublishProject)
		authed.GET("/projects/:id/preview", h.PreviewProject)

		authed.GET("/sessions", h.GetSessions)
		authed.GET("/sessions/:id", h.GetSession)
		authed.POST("/sessions/:id/cancel", h.CancelSession)
		authed.GET("/sessions/:id/ws", h.SessionProgressWS)

		authed.GET("/tokens/balance", h.GetBalance)
		authed.POST("/billing/checkout", h.CreateCheckout)
		authed.POST("/projects/:id/share", h.ShareProject)
		authed.POST("/community/:id/like", h.LikeCommunityProject)
	}

	return router
}
