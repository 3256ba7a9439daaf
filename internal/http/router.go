package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/twilio/twilio-go/client"

	"github.com/tikozap/backend/internal/ai"
	"github.com/tikozap/backend/internal/cache"
	"github.com/tikozap/backend/internal/config"
	"github.com/tikozap/backend/internal/db"
	"github.com/tikozap/backend/internal/http/handlers"
	"github.com/tikozap/backend/internal/http/middleware"
	"github.com/tikozap/backend/internal/metrics"
	"github.com/tikozap/backend/internal/quality"
	"github.com/tikozap/backend/internal/service"

	_ "github.com/tikozap/backend/docs"
)

func Router(cfg config.Config, store *db.Store, generator ai.Generator, dedupe cache.Dedupe, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	if cfg.MetricsEnabled {
		r.Use(middleware.Metrics())
	}
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	evaluator := quality.NewEvaluator(cfg.QualityThresholds())
	h := &handlers.Handler{
		Store:   store,
		Replies: &service.ReplyService{
			Store:     store,
			Generator: generator,
			Evaluator: evaluator,
			Logger:    logger,
		},
		Evaluator:    evaluator,
		Dedupe:       dedupe,
		Validator:    validator.New(),
		Logger:       logger,
		AdminKey:     cfg.AdminKey,
		PublicURL:    cfg.PublicBaseURL,
		VoiceHandoff: cfg.VoiceHandoff,
	}
	if cfg.TwilioToken != "" {
		v := client.NewRequestValidator(cfg.TwilioToken)
		h.Signatures = &v
	} else {
		logger.Warn().Msg("TWILIO_AUTH_TOKEN not set, voice webhook signatures are not checked")
	}

	r.GET("/healthz", h.Healthz)
	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := r.Group("/api")
	{
		api.POST("/support/reply", h.SupportReply)
		api.POST("/quality/evaluate", h.QualityEvaluate)
		api.POST("/widget/:tenant/messages", h.WidgetMessage)
		api.POST("/voice/:tenant/webhook", h.VoiceWebhook)
		api.GET("/conversations", h.ConversationsList)
		api.GET("/conversations/:id", h.ConversationDetails)
		api.GET("/quality/reports", h.QualityReports)
		api.GET("/quality/summary", h.QualitySummary)
		api.GET("/runs/latest", h.RunsLatest)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/import", h.Import)
		admin.POST("/process", h.Process)
		admin.POST("/conversations/:id/handoff", h.Handoff)
		admin.POST("/conversations/:id/resolve", h.ResolveConversation)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
