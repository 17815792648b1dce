package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Healthz returns OK for health checks
func Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
