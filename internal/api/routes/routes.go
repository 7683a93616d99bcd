package routes

import (
	"log/slog"

	"global-chat/docs"
	"global-chat/internal/api/handlers"
	"global-chat/internal/api/middleware"
	"global-chat/internal/config"
	"global-chat/internal/services"
	"global-chat/internal/websocket"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Router struct {
	engine        *gin.Engine
	cfg           *config.Config
	wsHandler     *handlers.WSHandler
	healthHandler *handlers.HealthHandler
	rateLimitMW   *middleware.RateLimitMiddleware
}

// NewRouter wires the HTTP surface of the relay. redisService may be nil, in
// which case handshake rate limiting and the Redis health probe are off.
func NewRouter(
	cfg *config.Config,
	hub *websocket.Hub,
	redisService *services.RedisService,
	log *slog.Logger,
) *Router {
	gin.SetMode(cfg.Server.GinMode)
	engine := gin.New()

	// Add middlewares
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(cfg.Chat.AllowedOrigins))
	engine.Use(middleware.LogApi())

	upgrader := websocket.NewUpgrader(cfg.Chat.AllowedOrigins, 1024)

	r := &Router{
		engine:    engine,
		cfg:       cfg,
		wsHandler: handlers.NewWSHandler(hub, upgrader, log),
	}

	if redisService != nil {
		r.healthHandler = handlers.NewHealthHandler(hub, redisService)
		r.rateLimitMW = middleware.NewRateLimitMiddleware(redisService, log)
	} else {
		r.healthHandler = handlers.NewHealthHandler(hub, nil)
	}

	return r
}

func (r *Router) SetupRoutes() {
	chat := []gin.HandlerFunc{}
	if r.rateLimitMW != nil {
		chat = append(chat, r.rateLimitMW.RateLimitIP(r.cfg.Chat.HandshakeRateLimit, r.cfg.Chat.HandshakeWindow))
	}
	chat = append(chat, r.wsHandler.HandleWebSocket)
	r.engine.GET(r.cfg.Chat.Path, chat...)

	api := r.engine.Group("/api")
	r.healthHandler.RegisterRoutes(api)

	docs.SwaggerInfo.BasePath = "/"
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
