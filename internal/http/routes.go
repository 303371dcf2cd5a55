package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Options configures routing and middleware.
type Options struct {
	CORSOrigin  string
	AdminToken  string
	CreateRPS   float64
	CreateBurst int
}

// SetupRoutes configures all application routes and middleware. ctx bounds
// background upkeep such as rate limiter cleanup.
func SetupRoutes(ctx context.Context, router *gin.Engine, env *Env, socket http.Handler, opts Options) {

	// --- Middleware ---

	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(env.Log))
	router.Use(RecoveryMiddleware(env.Log))
	router.Use(SecurityHeadersMiddleware())
	router.Use(cors.New(corsConfig(opts.CORSOrigin)))

	// --- Rate Limiter Setup ---
	limiter := NewIPRateLimiter(rate.Limit(opts.CreateRPS), opts.CreateBurst)
	go limiter.Cleanup(ctx, time.Minute)

	// --- API Routes ---

	api := router.Group("/api")
	{
		api.GET("/items", env.GetItems)
		api.POST("/items", RateLimitMiddleware(limiter), env.CreateItem)
		api.GET("/items/:id", env.GetItem)
		api.POST("/items/:id/like", env.ToggleLike)
		api.GET("/users/:userId/likes", env.GetUserLikes)
		api.GET("/aggregate", env.GetAggregate)
		api.POST("/aggregate/trigger", AdminAuthMiddleware(opts.AdminToken), env.TriggerAggregation)
	}

	router.GET("/healthz", env.Health)

	// --- WebSocket Route ---

	router.GET("/ws", gin.WrapH(socket))
}

func corsConfig(origin string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Admin-Token", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if origin == "" || origin == "*" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = []string{origin}
	cfg.AllowCredentials = true
	return cfg
}
