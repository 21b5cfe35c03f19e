package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeline_backend/config"
	"github.com/mmdatafocus/pipeline_backend/middlewares"
	"github.com/mmdatafocus/pipeline_backend/models"
	"github.com/mmdatafocus/pipeline_backend/utils"
	"github.com/mmdatafocus/pipeline_backend/workflow"
	"github.com/sirupsen/logrus"
)

// Dependencies are the services the HTTP layer calls into. Ready may be nil,
// meaning always ready; Cache may be nil, which disables rate limiting.
type Dependencies struct {
	Settings    config.Settings
	Logger      *logrus.Logger
	Credentials *models.Credentials
	Pipeline    *workflow.Pipeline
	Cache       *config.Cache
	Ready       func() bool
}

func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = config.GetLogger()
	}
	ready := deps.Ready
	if ready == nil {
		ready = func() bool { return true }
	}

	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.ReadinessGate(ready))
	r.Use(cors.New(corsConfig(deps.Settings)))
	if deps.Settings.RateLimitEnabled {
		if client := deps.Cache.Client(); client != nil {
			limiter := middlewares.NewRateLimiter(client, deps.Settings.RateLimitRequests, deps.Settings.RateLimitWindow)
			r.Use(limiter.RateLimitMiddleware)
		} else {
			deps.Logger.WithFields(logrus.Fields{"field": "rateLimit"}).Warn("RATE_LIMIT_ENABLED=true but redis is not configured; rate limiting disabled")
		}
	}
	r.Use(middlewares.CustomErrorLogger(deps.Logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	authH := &AuthHandler{credentials: deps.Credentials}
	pipelineH := &PipelineHandler{pipeline: deps.Pipeline}

	r.POST("/auth/register", authH.Register)
	r.POST("/auth/login", authH.Login)

	api := r.Group("/")
	api.Use(middlewares.AuthMiddleware(deps.Credentials))
	{
		api.GET("/auth/me", authH.Me)
		api.PUT("/auth/password", authH.ChangePassword)

		api.GET("/leads", pipelineH.ListLeads)
		api.POST("/leads", pipelineH.CreateLead)
		api.GET("/leads/export", pipelineH.ExportLeads)
		api.PUT("/leads/:id", pipelineH.UpdateLead)
		api.DELETE("/leads/:id", pipelineH.DeleteLead)
		api.POST("/leads/:id/convert", pipelineH.ConvertLead)

		api.GET("/opportunities", pipelineH.ListOpportunities)
		api.POST("/opportunities", pipelineH.CreateOpportunity)
		api.GET("/opportunities/export", pipelineH.ExportOpportunities)
		api.PUT("/opportunities/:id", pipelineH.UpdateOpportunity)
		api.DELETE("/opportunities/:id", pipelineH.DeleteOpportunity)

		api.GET("/dashboard/stats", pipelineH.DashboardStats)
	}

	r.NoRoute(customNotFoundHandler)
	return r
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// corsConfig requires an explicit allowlist in production and allows every
// origin elsewhere.
func corsConfig(settings config.Settings) cors.Config {
	corsConfig := cors.DefaultConfig()
	if settings.IsProduction() {
		corsConfig.AllowOrigins = settings.CorsAllowedOrigins
		if len(corsConfig.AllowOrigins) == 0 {
			// cors.New panics on an empty config; no real origin matches this
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationIdHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationIdHeader)
	if !corsConfig.AllowAllOrigins {
		corsConfig.AllowCredentials = true
	}
	corsConfig.MaxAge = 12 * time.Hour
	return corsConfig
}

// respondError is the single place errors become HTTP responses.
func respondError(c *gin.Context, err error) {
	middlewares.AbortWithError(c, err)
}

// bindJSON binds the request body into input. A missing body is accepted
// when optional is set.
func bindJSON(c *gin.Context, input any, optional bool) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		respondError(c, utils.ProcessValidationErrors(err))
		return false
	}
	return true
}

func currentPrincipal(c *gin.Context) (models.Principal, bool) {
	principal, ok := middlewares.PrincipalFromContext(c.Request.Context())
	if !ok {
		respondError(c, utils.ErrUnauthenticated)
	}
	return principal, ok
}
