package http

import (
	"errors"
	"net/http"
	"time"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/usecase"

	"github.com/gin-gonic/gin"
)

type ICredentialHandler interface {
	GetConnections(ctx *gin.Context)
	PutCredential(ctx *gin.Context)
}

type CredentialHandler struct {
	publishUsecase    usecase.IPublishUsecase
	credentialUsecase usecase.ICredentialUsecase
}

func NewCredentialHandler(publishUsecase usecase.IPublishUsecase, credentialUsecase usecase.ICredentialUsecase) ICredentialHandler {
	return &CredentialHandler{publishUsecase: publishUsecase, credentialUsecase: credentialUsecase}
}

// GetConnections lists which platforms the user has connected. Tokens are never returned.
func (h *CredentialHandler) GetConnections(ctx *gin.Context) {
	statuses, err := h.publishUsecase.Connections(ctx.Request.Context(), ctx.GetString("user_id"))
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"connections": statuses})
}

func (h *CredentialHandler) PutCredential(ctx *gin.Context) {
	var in dto.CredentialInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	cred := model.Credential{
		UserID:       ctx.GetString("user_id"),
		Platform:     ctx.Param("platform"),
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		ExpiresAt:    in.ExpiresAt,
		Scopes:       in.Scopes,
		AccountID:    in.AccountID,
		AccountName:  in.AccountName,
	}
	if cred.ExpiresAt == nil && in.ExpiresIn > 0 {
		exp := time.Now().UTC().Add(time.Duration(in.ExpiresIn) * time.Second)
		cred.ExpiresAt = &exp
	}

	if err := h.credentialUsecase.Connect(ctx.Request.Context(), cred); err != nil {
		var verr *usecase.ValidationError
		if errors.As(err, &verr) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": usecase.ErrValidation.Error(), "fields": verr.Fields})
			return
		}
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	ctx.Status(http.StatusNoContent)
}
