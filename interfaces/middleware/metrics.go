package middleware

import (
	"strconv"

	"crosspost/infrastructure/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics counts requests by method, matched route and status.
func Metrics() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()
		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(ctx.Request.Method, path, strconv.Itoa(ctx.Writer.Status())).Inc()
	}
}
