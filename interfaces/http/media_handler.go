package http

import (
	"errors"
	"net/http"
	"time"

	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/media"

	"github.com/gin-gonic/gin"
)

type IMediaHandler interface {
	Serve(ctx *gin.Context)
}

type MediaHandler struct {
	store repository.IMediaStore
}

func NewMediaHandler(store repository.IMediaStore) IMediaHandler {
	return &MediaHandler{store: store}
}

// Serve streams an in-flight upload so URL-pull platforms can fetch it.
// Handles are unguessable and vanish once the publish request finishes.
func (h *MediaHandler) Serve(ctx *gin.Context) {
	handle := ctx.Param("handle")
	rc, err := h.store.Open(ctx.Request.Context(), handle)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			ctx.Status(http.StatusNotFound)
			return
		}
		logger.GetLogger().WithField("handle", handle).WithField("error", err).Error("opening media failed")
		ctx.Status(http.StatusInternalServerError)
		return
	}
	defer rc.Close()
	ctx.Header("Cache-Control", "no-store")
	http.ServeContent(ctx.Writer, ctx.Request, handle, time.Time{}, rc)
}
