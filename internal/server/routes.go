package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kofany/nexus-sub000/internal/observability"
	"github.com/kofany/nexus-sub000/internal/relay"
)

var started = time.Now()

// wsEngine serves the WebSocket relay endpoint. Browser clients
// connect here; everything after the upgrade speaks the relay
// protocol.
func (s *Server) wsEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(observability.RequestLogger(s.log))
	if origins := s.cfg.Relay.CorsOrigins; len(origins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = origins
		engine.Use(cors.New(corsCfg))
	}
	engine.GET(s.cfg.Relay.WSPath, relay.WSHandler(s.bridge.Accept, s.log))
	return engine
}

// adminEngine serves health, metrics and the session listing.
func (s *Server) adminEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(observability.RequestLogger(s.log))
	engine.Use(observability.RequestMetricsMiddleware())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": s.cfg.Name,
			"uptime":  time.Since(started).String(),
		})
	})
	engine.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": s.bridge.Sessions()})
	})
	return engine
}
