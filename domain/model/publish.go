package model

import (
	"context"
	"io"
	"time"
)

type PublishStatus string

const (
	PublishStatusSuccess PublishStatus = "success"
	PublishStatusError   PublishStatus = "error"
)

// MediaResource is a handle to an uploaded temporary file owned by one publish request.
type MediaResource struct {
	Handle      string `json:"handle" validate:"required"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// IsVideo is true for video/* content types.
func (m MediaResource) IsVideo() bool {
	return len(m.ContentType) >= 6 && m.ContentType[:6] == "video/"
}

// PublishRequest is a validated publish call from the HTTP layer.
type PublishRequest struct {
	UserID    string        `json:"user_id" validate:"required"`
	Caption   string        `json:"caption" validate:"max=5000"`
	Media     MediaResource `json:"media"`
	Platforms []string      `json:"platforms" validate:"required,min=1,max=20,dive,required,max=64"`
}

// Post is what an adapter receives: caption plus a way to read the media.
// Open returns a fresh reader positioned at the start of the content; callers close it.
type Post struct {
	Caption  string
	Media    MediaResource
	MediaURL string // public URL for platforms that pull media, empty when not served
	Open     func(ctx context.Context) (io.ReadSeekCloser, error)
}

// PublishResult is one platform's outcome. platform_url is set iff success,
// error_code iff error; both serialize as null otherwise.
type PublishResult struct {
	Platform    string        `json:"platform" bson:"platform"`
	Status      PublishStatus `json:"status" bson:"status"`
	Message     string        `json:"message" bson:"message"`
	PlatformURL *string       `json:"platform_url" bson:"platform_url"`
	ErrorCode   *string       `json:"error_code" bson:"error_code"`
}

func PublishSuccess(platform, url, message string) PublishResult {
	return PublishResult{Platform: platform, Status: PublishStatusSuccess, Message: message, PlatformURL: &url}
}

func PublishFailure(platform, code, message string) PublishResult {
	return PublishResult{Platform: platform, Status: PublishStatusError, Message: message, ErrorCode: &code}
}

// PublishReport holds one result per requested platform in request order.
type PublishReport struct {
	ID        string          `json:"id" bson:"_id"`
	UserID    string          `json:"user_id" bson:"user_id"`
	Results   []PublishResult `json:"results" bson:"results"`
	Warnings  []string        `json:"warnings,omitempty" bson:"warnings,omitempty"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}

// Succeeded counts success results.
func (r *PublishReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == PublishStatusSuccess {
			n++
		}
	}
	return n
}
