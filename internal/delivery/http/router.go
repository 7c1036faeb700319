package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	custommiddleware "propdesk/internal/middleware"
)

// RouterConfig holds all dependencies for routing
type RouterConfig struct {
	AccountHandler *AccountHandler
	TradeHandler   *TradeHandler
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(e *echo.Echo, config *RouterConfig) {
	// Middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging for the health probe to reduce noise
			return c.Request().URL.Path == "/health"
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return SuccessResponse(c, map[string]interface{}{
			"status":    "healthy",
			"service":   "propdesk-api",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// API group
	api := e.Group("/api")

	// Payment webhook (public; called by the payment collaborator)
	api.POST("/payments/confirmed", config.AccountHandler.PaymentConfirmed)

	// Account routes (protected with AuthMiddleware)
	accounts := api.Group("/accounts", custommiddleware.AuthMiddleware)
	{
		accounts.POST("", config.AccountHandler.CreateAccount)
		accounts.GET("/:id", config.AccountHandler.GetAccount)
		accounts.GET("/:id/positions", config.TradeHandler.GetPositions)
		accounts.GET("/:id/trades", config.TradeHandler.GetTrades)
		accounts.POST("/:id/trades", config.TradeHandler.OpenTrade)
		accounts.POST("/:id/positions/:positionId/close", config.TradeHandler.CloseTrade)
		accounts.POST("/:id/evaluate", config.TradeHandler.Evaluate)
	}
}
