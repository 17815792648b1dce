package server

import (
	"slices"
	"time"

	httpHandler "crosspost/interfaces/http"
	"crosspost/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func InitiateRouter(
	corsOrigins []string,
	verifier middleware.IIdentityVerifier,
	publishHandler httpHandler.IPublishHandler,
	credentialHandler httpHandler.ICredentialHandler,
	mediaHandler httpHandler.IMediaHandler,
	stream gin.HandlerFunc,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Metrics())
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", httpHandler.IdempotencyHeader},
		ExposeHeaders:    []string{"Content-Length", httpHandler.ReplayedHeader},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			return slices.Contains(corsOrigins, origin)
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/healthz", httpHandler.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	// media is fetched by platforms without credentials; handles are random
	router.GET("/media/:handle", mediaHandler.Serve)

	api := router.Group("api")
	api.Use(middleware.Auth(verifier))

	api.POST("/publish", publishHandler.Publish)
	api.GET("/publish/platforms", publishHandler.GetPlatforms)
	api.GET("/publish/reports", publishHandler.GetReports)
	if stream != nil {
		api.GET("/publish/stream", stream)
	}

	api.GET("/credentials", credentialHandler.GetConnections)
	api.PUT("/credentials/:platform", credentialHandler.PutCredential)

	return router
}
