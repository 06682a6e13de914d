package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/middleware"
	"messenger-service/internal/models"
	"messenger-service/internal/telemetry"
)

const debugTokenTTL = time.Hour

// RegisterDebugRoutes wires local-only helpers. Nothing is registered unless enabled.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.AuditEmitter, verifier *middleware.TokenVerifier, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		audit(c, emitter, telemetry.Entry{Action: "debug.audit_test", Text: "audit test"})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Issues a short lived token for any registered provider.
	router.GET("/debug/token/:alias/:id", func(c *gin.Context) {
		token, err := verifier.Sign(models.Ref(c.Param("alias"), c.Param("id")), debugTokenTTL)
		if err == nil {
			_, err = verifier.Verify(token)
		}
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(debugTokenTTL.Seconds())})
	})
}
