package routes

import (
	"net/http"
	"time"

	"discussion-service/internal/api/middleware"
	"discussion-service/internal/discussion"
	"discussion-service/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type Router struct {
	engine            *gin.Engine
	hub               *realtime.Hub
	discussionHandler *discussion.DiscussionHandler
	auth              *middleware.AuthMiddleware
	rateLimit         *middleware.RateLimitMiddleware
}

func NewRouter(hub *realtime.Hub, discussionHandler *discussion.DiscussionHandler, jwtSecret string, redisClient *redis.Client) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.LogAPI())
	engine.Use(middleware.CORS())

	return &Router{
		engine:            engine,
		hub:               hub,
		discussionHandler: discussionHandler,
		auth:              middleware.NewAuthMiddleware(jwtSecret),
		rateLimit:         middleware.NewRateLimitMiddleware(redisClient),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": r.hub.ConnectionCount(),
		})
	})

	// The websocket endpoint upgrades without credentials; identity is
	// established in-band by the auth envelope.
	r.engine.GET("/ws", r.hub.HandleWS)

	v1 := r.engine.Group("/api/v1")
	{
		discussions := v1.Group("/discussions")
		discussions.GET("", r.discussionHandler.List)
		discussions.GET("/:id", r.discussionHandler.Get)

		authed := discussions.Group("")
		authed.Use(r.auth.RequireAuth())
		authed.Use(r.rateLimit.RateLimit(60, time.Minute))
		{
			authed.POST("", r.discussionHandler.Create)
			authed.PUT("/:id", r.discussionHandler.Update)
			authed.DELETE("/:id", r.discussionHandler.Delete)
		}

		mine := v1.Group("/me/discussions")
		mine.Use(r.auth.RequireAuth())
		mine.GET("", r.discussionHandler.ListMine)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
