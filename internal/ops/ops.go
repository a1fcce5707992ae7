// Package ops serves the local operational surface: health, metrics and
// debug introspection. It never carries application traffic.
package ops

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-sync/internal/observability"
	"chat-sync/internal/session"
	"chat-sync/internal/telemetry"
)

// NewRouter builds the ops router for a running session.
func NewRouter(sess *session.Session, audit *telemetry.AuditEmitter, debugEnabled bool) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chat-sync-ops"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":            "ok",
			"user_id":           sess.UserID,
			"channel_connected": sess.Connected(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerDebugRoutes(router, sess, audit, debugEnabled)
	return router
}

// registerDebugRoutes wires debug-only endpoints.
func registerDebugRoutes(router *gin.Engine, sess *session.Session, audit *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/session", func(c *gin.Context) {
		perRoom, pending, failed := sess.Messages.Counts()
		c.JSON(http.StatusOK, gin.H{
			"session_id":       sess.ID,
			"user_id":          sess.UserID,
			"rooms":            sess.Rooms.Len(),
			"messages_by_room": perRoom,
			"pending":          pending,
			"failed":           failed,
		})
	})

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if audit == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		userID := sess.UserID
		audit.Emit(c.Request.Context(), "INFO", "audit test", sess.ID, &userID)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
