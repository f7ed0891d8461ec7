package api

import (
	"net/http"
	"time"

	"campaign-server/shared/authutils"
	"campaign-server/shared/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

// RouterConfig - параметры HTTP-роутера.
type RouterConfig struct {
	Env            string
	AllowedOrigins []string
	EnableMetrics  bool
}

// NewRouter собирает gin-движок со всеми маршрутами API.
func NewRouter(cfg RouterConfig, h *CampaignHandler, verifier middleware.TokenVerifier, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.GinZapLogger(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	health := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	router.GET("/health", health)
	router.HEAD("/health", health)

	auth := middleware.GinAuth(verifier, logger)
	v1 := router.Group("/api/v1", auth)
	{
		v1.POST("/campaigns", h.createCampaign)
		v1.DELETE("/campaigns/:taskId", h.cancelCampaign)
		v1.GET("/credits", h.getCredits)
	}

	admin := router.Group("/api/v1/admin", middleware.GinAuth(verifier, logger, authutils.RoleOperator))
	{
		admin.POST("/credits/deposit", h.deposit)
	}

	// Метрики подключаются после регистрации маршрутов.
	if cfg.EnableMetrics {
		p := ginprometheus.NewPrometheus("campaign_api")
		p.Use(router)
	}

	return router
}
