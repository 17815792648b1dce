package dto

import (
	"time"

	"crosspost/domain/model"
)

type Res struct {
	ResponseCode    string      `json:"response_code"`
	ResponseMessage string      `json:"response_message"`
	Data            interface{} `json:"data,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusFatal   = "fatal"
)

// PublishResponse is the body of POST /api/publish.
type PublishResponse struct {
	Status string               `json:"status"`
	Report *model.PublishReport `json:"report,omitempty"`
	Error  string               `json:"error,omitempty"`
	Fields map[string]string    `json:"fields,omitempty"`
}

// CredentialInput stores a token obtained outside this service.
// ExpiresIn (seconds) is used when ExpiresAt is absent.
type CredentialInput struct {
	AccessToken  string     `json:"access_token" binding:"required"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at"`
	ExpiresIn    int64      `json:"expires_in" binding:"gte=0"`
	Scopes       string     `json:"scopes"`
	AccountID    *string    `json:"account_id"`
	AccountName  *string    `json:"account_name"`
}
