package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/media"
	"crosspost/usecase"

	"github.com/gin-gonic/gin"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"
)

type IPublishHandler interface {
	Publish(ctx *gin.Context)
	GetPlatforms(ctx *gin.Context)
	GetReports(ctx *gin.Context)
}

type PublishHandler struct {
	publishUsecase usecase.IPublishUsecase
	reportUsecase  usecase.IReportUsecase
	mediaStore     repository.IMediaStore
	idempotency    repository.IIdempotencyStore
}

// NewPublishHandler accepts nil reportUsecase and idempotency when those backends are not configured.
func NewPublishHandler(
	publishUsecase usecase.IPublishUsecase,
	reportUsecase usecase.IReportUsecase,
	mediaStore repository.IMediaStore,
	idempotency repository.IIdempotencyStore,
) IPublishHandler {
	return &PublishHandler{
		publishUsecase: publishUsecase,
		reportUsecase:  reportUsecase,
		mediaStore:     mediaStore,
		idempotency:    idempotency,
	}
}

// Publish accepts multipart caption, platforms (repeated or comma separated) and media.
func (h *PublishHandler) Publish(ctx *gin.Context) {
	userID := ctx.GetString("user_id")
	lg := logger.GetLogger().WithField("user_id", userID)

	key := strings.TrimSpace(ctx.GetHeader(IdempotencyHeader))
	if key != "" && h.idempotency != nil {
		report, ok, err := h.idempotency.Get(ctx.Request.Context(), userID, key)
		if err != nil {
			lg.WithField("error", err).Warn("idempotency lookup failed")
		} else if ok {
			ctx.Header(ReplayedHeader, "true")
			ctx.JSON(http.StatusOK, dto.PublishResponse{Status: dto.StatusSuccess, Report: report})
			return
		}
	}

	req := &model.PublishRequest{
		UserID:    userID,
		Caption:   ctx.PostForm("caption"),
		Platforms: splitPlatforms(ctx.PostFormArray("platforms")),
	}

	if fh, err := ctx.FormFile("media"); err == nil {
		f, err := fh.Open()
		if err != nil {
			ctx.JSON(http.StatusBadRequest, dto.PublishResponse{Status: dto.StatusError, Error: "unreadable media upload"})
			return
		}
		saved, err := h.mediaStore.Save(ctx.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), f)
		_ = f.Close()
		if err != nil {
			if errors.Is(err, media.ErrTooLarge) {
				ctx.JSON(http.StatusRequestEntityTooLarge, dto.PublishResponse{Status: dto.StatusError, Error: err.Error()})
				return
			}
			lg.WithField("error", err).Error("saving media failed")
			ctx.JSON(http.StatusInternalServerError, dto.PublishResponse{Status: dto.StatusFatal, Error: "media storage unavailable"})
			return
		}
		req.Media = *saved
	}

	report, err := h.publishUsecase.Publish(ctx.Request.Context(), req)
	if err != nil {
		var verr *usecase.ValidationError
		switch {
		case errors.As(err, &verr):
			ctx.JSON(http.StatusBadRequest, dto.PublishResponse{Status: dto.StatusError, Error: usecase.ErrValidation.Error(), Fields: verr.Fields})
		case errors.Is(err, usecase.ErrStoreUnavailable):
			ctx.JSON(http.StatusServiceUnavailable, dto.PublishResponse{Status: dto.StatusFatal, Error: usecase.ErrStoreUnavailable.Error()})
		default:
			lg.WithField("error", err).Error("publish failed")
			ctx.JSON(http.StatusInternalServerError, dto.PublishResponse{Status: dto.StatusFatal, Error: "internal error"})
		}
		return
	}

	if key != "" && h.idempotency != nil {
		if err := h.idempotency.Put(ctx.Request.Context(), userID, key, report); err != nil {
			lg.WithField("error", err).Warn("storing idempotent report failed")
		}
	}
	ctx.JSON(http.StatusOK, dto.PublishResponse{Status: dto.StatusSuccess, Report: report})
}

func (h *PublishHandler) GetPlatforms(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"platforms": h.publishUsecase.Platforms()})
}

func (h *PublishHandler) GetReports(ctx *gin.Context) {
	if h.reportUsecase == nil {
		ctx.JSON(http.StatusNotImplemented, gin.H{"error": "report history not configured"})
		return
	}
	limit := 20
	if v := ctx.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	reports, err := h.reportUsecase.Recent(ctx.Request.Context(), ctx.GetString("user_id"), limit)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("listing reports failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "report history unavailable"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"reports": reports})
}

func splitPlatforms(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
