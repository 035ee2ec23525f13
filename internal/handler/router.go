package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"merchant-backend/internal/handler/api"
	"merchant-backend/internal/handler/middleware"
	"merchant-backend/internal/pkg/config"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

type RouterParams struct {
	Config             config.Config
	Logger             *middleware.Logger
	TransactionHandler *api.TransactionHandler
	AuthMiddleware     *middleware.AuthMiddleware
	RateLimiter        *middleware.RateLimiter
	Metrics            http.Handler
}

func NewRouter(engine *gin.Engine, p RouterParams) {
	setupMiddleware(engine, p.Config, p.Logger)
	setupRoutes(engine, p)
}

func setupMiddleware(engine *gin.Engine, cfg config.Config, logger *middleware.Logger) {
	// Recovery must be first (outermost) to catch panics from all other middleware
	engine.Use(middleware.CustomRecovery(logger.GetSlogLogger()))
	engine.Use(middleware.NewCORSMiddleware(cfg.CORS))
	engine.Use(logger.LoggingMiddleware())
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(engine *gin.Engine, p RouterParams) {
	engine.GET("/health", healthCheck)
	engine.GET("/metrics", p.RateLimiter.Limit("strict"), gin.WrapH(p.Metrics))

	if gin.Mode() == gin.DebugMode {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	apiGroup := engine.Group("/api")
	apiGroup.Use(p.RateLimiter.Limit("default"))
	{
		// auth counts per client address before the token is checked
		transactions := apiGroup.Group("/transactions")
		transactions.Use(
			p.RateLimiter.Limit("auth"),
			p.AuthMiddleware.RequireAuth(),
			p.RateLimiter.Limit("transactions"),
		)
		{
			addRoutes(transactions, []route{
				{Method: http.MethodPost, Path: "", Handler: p.TransactionHandler.Create},
				{Method: http.MethodGet, Path: "", Handler: p.TransactionHandler.List},
				{Method: http.MethodGet, Path: "/:id", Handler: p.TransactionHandler.Get},
			})
		}
	}
}

// @Summary Health check
// @Description Check if the service is healthy
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Service is healthy",
	})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		h := r.Handler
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, h)
		case http.MethodPost:
			g.POST(r.Path, h)
		case http.MethodPut:
			g.PUT(r.Path, h)
		case http.MethodPatch:
			g.PATCH(r.Path, h)
		case http.MethodDelete:
			g.DELETE(r.Path, h)
		default:
			g.Any(r.Path, h)
		}
	}
}
