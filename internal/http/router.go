package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/familytree-backend/internal/http/handlers"
	httpMW "github.com/yungbote/familytree-backend/internal/http/middleware"
	"github.com/yungbote/familytree-backend/internal/observability"
	"github.com/yungbote/familytree-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AllowedOrigins []string
	// ServiceName labels server spans; empty skips otelgin.
	ServiceName    string

	HealthHandler *httpH.HealthHandler
	FamilyHandler *httpH.FamilyHandler
	TreeHandler   *httpH.TreeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Members
		if cfg.FamilyHandler != nil {
			api.GET("/members/:id/partner", cfg.FamilyHandler.Partner)
			api.GET("/members/:id/children", cfg.FamilyHandler.Children)
			api.GET("/members/:id/parent", cfg.FamilyHandler.Parent)
			api.PUT("/members/:id/profile", cfg.FamilyHandler.SetProfile)
			api.DELETE("/members/:id", cfg.FamilyHandler.Remove)

			// Marriages
			api.POST("/marriages", cfg.FamilyHandler.Marry)
			api.DELETE("/members/:id/marriage", cfg.FamilyHandler.Divorce)

			// Parent links
			api.POST("/parents", cfg.FamilyHandler.Adopt)
			api.DELETE("/parents", cfg.FamilyHandler.Disown)
		}

		// Trees
		if cfg.TreeHandler != nil {
			api.GET("/members/:id/tree.png", cfg.TreeHandler.Image)
			api.GET("/members/:id/tree.ged", cfg.TreeHandler.Gedcom)
			api.GET("/members/:id/tree.txt", cfg.TreeHandler.Text)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "route not found", "code": "not_found"}})
	})
	return r
}
