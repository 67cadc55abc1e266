package web

import (
	"homehub/auth"
	"homehub/internal/db"
	"homehub/internal/web/api"
	"homehub/internal/web/middleware"
	"homehub/internal/web/stream"

	"github.com/gin-gonic/gin"
)

type WebServer struct {
	router *gin.Engine
	hub    *stream.Hub
}

// NewWebServer assembles the HTTP surface: auth, CRUD for homes, devices,
// device types, events and commands, the manual trigger pass-through, and
// the websocket state feed.
func NewWebServer(dbConn *db.DB, JWTSecret string, notifier api.RuleNotifier, trigger api.CommandTrigger, hub *stream.Hub) *WebServer {
	router := gin.Default()

	authModule := auth.NewAuthModule(dbConn.Pool(), JWTSecret)
	middlewareManager := middleware.NewMiddlewareManager(authModule)

	api.RegisterAuthRoutes(router, authModule)
	api.RegisterHomeRoutes(router, middlewareManager, dbConn)
	api.RegisterDeviceRoutes(router, middlewareManager, dbConn)
	api.RegisterDeviceTypeRoutes(router, middlewareManager, dbConn)
	api.RegisterEventRoutes(router, middlewareManager, dbConn, notifier)
	api.RegisterCommandRoutes(router, middlewareManager, dbConn, trigger)

	router.GET("/ws", gin.WrapH(hub))

	return &WebServer{router: router, hub: hub}
}

func (ws *WebServer) Start(addr string) error {
	return ws.router.Run(addr)
}
