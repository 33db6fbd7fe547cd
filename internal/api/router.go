package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jstittsworth/bracket-optimizer/internal/api/handlers"
	"github.com/jstittsworth/bracket-optimizer/internal/api/middleware"
	"github.com/jstittsworth/bracket-optimizer/internal/services"
	"github.com/jstittsworth/bracket-optimizer/pkg/config"
	"github.com/jstittsworth/bracket-optimizer/pkg/database"
)

// Dependencies are the shared services the routes are built on.
type Dependencies struct {
	DB         *database.DB
	Cache      *services.CacheService
	Hub        *services.WebSocketHub
	Forecasts  *services.ForecastStore
	Selections *services.SelectionService
	Config     *config.Config
}

// NewRouter builds the engine with middleware and every route installed.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(deps.Config.CorsOrigins))

	health := handlers.NewHealthHandler(deps.DB, deps.Cache, deps.Hub)
	router.GET("/health", health.GetHealth)

	SetupRoutes(router.Group("/api/v1"), deps)

	// WebSocket lives at the root, not under /api/v1
	ws := handlers.NewWebSocketHandler(deps.Hub, deps.Config.CorsOrigins)
	router.GET("/ws", middleware.OptionalAuth(deps.Config.JWTSecret), ws.HandleWebSocket)

	return router
}

// SetupRoutes configures the API routes on the given router group.
func SetupRoutes(group *gin.RouterGroup, deps Dependencies) {
	cfg := deps.Config

	selectionHandler := handlers.NewSelectionHandler(deps.Selections)
	forecastHandler := handlers.NewForecastHandler(deps.Forecasts, deps.Selections, cfg.Gender)
	limiter := middleware.NewClientRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	group.GET("/forecasts/dates", forecastHandler.ListDates)

	group.GET("/selections", selectionHandler.ListSelections)
	group.GET("/selections/:id", selectionHandler.GetSelection)
	group.POST("/selections", middleware.RateLimit(limiter), selectionHandler.RunSelection)

	// Authenticated routes
	auth := group.Group("")
	auth.Use(middleware.AuthRequired(cfg.JWTSecret))
	{
		auth.POST("/forecasts/import", forecastHandler.ImportForecasts)
	}
}
