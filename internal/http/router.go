package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/lockboxlabs/warden/internal/config"
	"github.com/lockboxlabs/warden/internal/http/handler"
	httpmiddleware "github.com/lockboxlabs/warden/internal/http/middleware"
	"github.com/lockboxlabs/warden/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	r.Use(httpmiddleware.RequestTimeout(cfg.StoreTimeout))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.POST("/logout/all", authMiddleware.ValidateToken, authHandler.LogoutAll)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.GET("/me", authMiddleware.ValidateToken, authHandler.Me)
	}

	r.GET("/healthz", authHandler.Healthz)

	return r
}
