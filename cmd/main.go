package main

import (
	"context"
	"crypto/rsa"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/handler"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/middleware"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/partnerclient"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/realtime"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/repository"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/service"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/config"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/database"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/jwtutil"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/logger"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/secrets"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/prometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load("federation-service")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting federation service...", cfg.LogConfig()...)

	// Initialize database
	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateModels(
		&model.Partnership{},
		&model.UserFederationSettings{},
		&model.SystemControls{},
		&model.TenantFeature{},
		&model.WhitelistEntry{},
		&model.FederatedMessage{},
		&model.FederatedTransaction{},
		&model.ExternalPartner{},
		&model.AuditEntry{},
		&model.RealtimeEvent{},
	); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	// Credential encryption for the partner registry
	box, err := secrets.NewBox(cfg.Federation.CredentialKey)
	if err != nil {
		log.Fatal("Failed to initialize credential encryption", zap.Error(err))
	}

	// Redis powers the realtime push channel. When unavailable the service
	// degrades to polling; it never refuses to start.
	var sink realtime.EventSink
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unavailable, realtime falls back to polling", zap.Error(err))
	} else {
		sink = realtime.NewRedisSink(redisClient, log)
	}
	cancel()

	// Repositories
	partnershipRepo := repository.NewPartnershipRepository(db, log)
	settingsRepo := repository.NewSettingsRepository(db, log)
	featureRepo := repository.NewFeatureRepository(db, log)
	messageRepo := repository.NewMessageRepository(db, log)
	transactionRepo := repository.NewTransactionRepository(db, log)
	memberRepo := repository.NewMemberRepository(db, log)
	partnerRepo := repository.NewPartnerRepository(db, log)
	auditRepo := repository.NewAuditRepository(db, log)
	eventRepo := repository.NewEventRepository(db, log)

	// Outbound partner client and realtime dispatcher
	partnerClient := partnerclient.New(cfg.Federation.PlatformID, cfg.Federation.PartnerTimeout, box, log)
	dispatcher := realtime.NewDispatcher(sink, eventRepo, log)

	// Services
	auditSvc := service.NewAuditService(auditRepo, log)
	featureSvc := service.NewFeatureService(featureRepo, auditSvc, log)
	partnershipSvc := service.NewPartnershipService(partnershipRepo, featureSvc, auditSvc, log)
	userSvc := service.NewUserService(settingsRepo, auditSvc, log)
	gateway := service.NewGateway(featureSvc, partnershipSvc, userSvc, log)
	partnerSvc := service.NewPartnerAdminService(partnerRepo, partnerClient, box, auditSvc, log)
	tokenSvc := service.NewTokenService(partnerSvc, auditSvc, log,
		cfg.Federation.PlatformID, []byte(cfg.Token.SigningKey), loadRSAKey(cfg, log),
		cfg.Token.DefaultTTL, cfg.Token.MaxTTL)
	messageSvc := service.NewMessageService(messageRepo, gateway, dispatcher, partnerClient, partnerSvc, auditSvc, log)
	transactionSvc := service.NewTransactionService(transactionRepo, gateway, dispatcher, auditSvc, log)
	searchSvc := service.NewSearchService(memberRepo, userSvc, partnershipSvc, partnerSvc, partnerClient, log)

	// Middleware and handlers
	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      cfg.JWT.SigningKey,
		ExpirationHours: cfg.JWT.ExpirationHours,
	})
	partnerAuth := middleware.NewPartnerAuth(partnerSvc, tokenSvc, cfg.Federation.TimestampTolerance, log)

	tokenHandler := handler.NewTokenHandler(tokenSvc)
	partnershipHandler := handler.NewPartnershipHandler(partnershipSvc, dispatcher)
	settingsHandler := handler.NewSettingsHandler(userSvc, gateway, dispatcher)
	messageHandler := handler.NewMessageHandler(messageSvc, dispatcher)
	transactionHandler := handler.NewTransactionHandler(transactionSvc)
	searchHandler := handler.NewSearchHandler(searchSvc, gateway, auditSvc, dispatcher)
	realtimeHandler := handler.NewRealtimeHandler(dispatcher, auditSvc)
	adminHandler := handler.NewAdminHandler(featureSvc, partnershipSvc, auditSvc)
	partnerAdminHandler := handler.NewPartnerAdminHandler(partnerSvc)
	federationAPIHandler := handler.NewFederationAPIHandler(searchSvc, messageSvc, transactionSvc, memberRepo, auditSvc)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	log.Info("Prometheus metrics initialized")

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/", handler.Hello)
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", prometheus.HandlerFunc())

	// Inbound partner API
	fed := e.Group("/api/v1/federation")
	fed.POST("/oauth/token", tokenHandler.IssueToken)

	partnerAPI := fed.Group("", partnerAuth.Middleware)
	partnerAPI.GET("/timebanks", federationAPIHandler.Timebanks)
	partnerAPI.GET("/members", federationAPIHandler.Members, middleware.RequireScope("members:read"))
	partnerAPI.GET("/members/:id", federationAPIHandler.Member, middleware.RequireScope("members:read"))
	partnerAPI.GET("/listings", federationAPIHandler.Listings, middleware.RequireScope("listings:read"))
	partnerAPI.GET("/listings/:id", federationAPIHandler.Listing, middleware.RequireScope("listings:read"))
	partnerAPI.POST("/messages", federationAPIHandler.ReceiveMessage, middleware.RequireScope("messages:write"))
	partnerAPI.POST("/transactions", federationAPIHandler.ReceiveTransaction, middleware.RequireScope("transactions:write"))
	partnerAPI.POST("/webhooks/test", federationAPIHandler.WebhookTest)

	// User routes - platform JWT required
	api := e.Group("/api/v1", middleware.UserAuthMiddleware(jwtUtil))

	api.GET("/settings", settingsHandler.Get)
	api.PUT("/settings", settingsHandler.Update)
	api.POST("/settings/opt-out", settingsHandler.OptOut)
	api.GET("/federation/status", settingsHandler.FederationStatus)

	api.GET("/search/members", searchHandler.Members)
	api.GET("/search/listings", searchHandler.Listings)
	api.GET("/profiles/:id", searchHandler.Profile)
	api.GET("/listings/:id", searchHandler.Listing)

	api.POST("/messages", messageHandler.Send)
	api.GET("/messages", messageHandler.Inbox)
	api.GET("/messages/thread", messageHandler.Thread)
	api.POST("/messages/thread/read", messageHandler.MarkThreadRead)
	api.POST("/messages/:id/read", messageHandler.MarkRead)
	api.GET("/messages/unread-count", messageHandler.UnreadCount)
	api.POST("/messages/typing", messageHandler.Typing)

	api.POST("/transactions", transactionHandler.Create)
	api.GET("/transactions", transactionHandler.History)
	api.GET("/transactions/:id", transactionHandler.Get)
	api.POST("/transactions/:id/reverse", transactionHandler.Reverse)

	api.GET("/realtime/events", realtimeHandler.Events)
	api.POST("/realtime/ack", realtimeHandler.Ack)
	api.POST("/realtime/auth", realtimeHandler.AuthorizeChannel)
	api.GET("/realtime/status", realtimeHandler.Status)

	api.GET("/partnerships/levels", partnershipHandler.Levels)
	api.GET("/partnerships", partnershipHandler.List)
	api.GET("/partnerships/:id", partnershipHandler.Get)

	// Tenant admin routes - partnership lifecycle and the partner registry
	admin := api.Group("", middleware.AdminOnlyMiddleware)
	admin.POST("/partnerships", partnershipHandler.Request)
	admin.GET("/partnerships/pending", partnershipHandler.PendingIncoming)
	admin.GET("/partnerships/outgoing", partnershipHandler.Outgoing)
	admin.GET("/partnerships/counter-proposals", partnershipHandler.CounterProposals)
	admin.POST("/partnerships/:id/approve", partnershipHandler.Approve)
	admin.POST("/partnerships/:id/decline", partnershipHandler.Decline)
	admin.POST("/partnerships/:id/counter", partnershipHandler.Counter)
	admin.POST("/partnerships/:id/counter/accept", partnershipHandler.AcceptCounter)
	admin.POST("/partnerships/:id/counter/reject", partnershipHandler.RejectCounter)
	admin.POST("/partnerships/:id/suspend", partnershipHandler.Suspend)
	admin.POST("/partnerships/:id/resume", partnershipHandler.Resume)
	admin.POST("/partnerships/:id/terminate", partnershipHandler.Terminate)
	admin.PUT("/partnerships/:id/permissions", partnershipHandler.UpdatePermissions)

	admin.POST("/partners", partnerAdminHandler.Register)
	admin.GET("/partners", partnerAdminHandler.List)
	admin.GET("/partners/:id", partnerAdminHandler.Get)
	admin.POST("/partners/:id/rotate", partnerAdminHandler.RotateCredentials)
	admin.POST("/partners/:id/test", partnerAdminHandler.TestConnection)
	admin.PUT("/partners/:id/status", partnerAdminHandler.SetStatus)
	admin.DELETE("/partners/:id", partnerAdminHandler.Remove)

	// Superadmin routes - system-wide switches and the audit log
	system := api.Group("/system", middleware.SuperAdminOnlyMiddleware)
	system.GET("/controls", adminHandler.SystemControls)
	system.PUT("/controls", adminHandler.UpdateSystemControls)
	system.POST("/lockdown", adminHandler.Lockdown)
	system.DELETE("/lockdown", adminHandler.LiftLockdown)
	system.GET("/whitelist", adminHandler.Whitelist)
	system.POST("/whitelist", adminHandler.AddToWhitelist)
	system.DELETE("/whitelist/:tenant_id", adminHandler.RemoveFromWhitelist)
	system.GET("/tenants/:tenant_id/features", adminHandler.TenantFeatures)
	system.PUT("/tenants/:tenant_id/features", adminHandler.SetTenantFeature)
	system.GET("/partnerships", adminHandler.Partnerships)
	system.GET("/partnerships/stats", adminHandler.PartnershipStats)
	system.GET("/audit", adminHandler.AuditLog)
	system.GET("/audit/stats", adminHandler.AuditStats)
	system.POST("/audit/cleanup", adminHandler.AuditCleanup)
	system.POST("/cache/clear", adminHandler.ClearCache)

	// Periodic retention sweeps for queued events and audit entries
	go retentionLoop(cfg, dispatcher, auditSvc, log)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

// loadRSAKey reads the optional RS256 signing key. Absence is not an
// error; token issuance falls back to HS256.
func loadRSAKey(cfg *config.Config, log *zap.Logger) *rsa.PrivateKey {
	if cfg.Token.RSAPrivateKeyFile == "" {
		return nil
	}
	pemBytes, err := os.ReadFile(cfg.Token.RSAPrivateKeyFile)
	if err != nil {
		log.Fatal("Failed to read RSA private key", zap.Error(err))
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		log.Fatal("Failed to parse RSA private key", zap.Error(err))
	}
	return key
}

func retentionLoop(cfg *config.Config, dispatcher *realtime.Dispatcher, audit *service.AuditService, log *zap.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		if n, err := dispatcher.CleanupOldEvents(cfg.Federation.EventRetention); err != nil {
			log.Error("Realtime event cleanup failed", zap.Error(err))
		} else if n > 0 {
			log.Info("Realtime events purged", zap.Int64("count", n))
		}
		if n, err := audit.Cleanup(cfg.Federation.AuditRetention); err != nil {
			log.Error("Audit cleanup failed", zap.Error(err))
		} else if n > 0 {
			log.Info("Audit entries purged", zap.Int64("count", n))
		}
	}
}
