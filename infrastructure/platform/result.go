package platform

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
)

// Adapter error codes. They end up in PublishResult.error_code.
const (
	CodeUnauthorized     = "unauthorized"
	CodeRateLimited      = "rate_limited"
	CodeAPIError         = "api_error"
	CodeRequestFailed    = "request_failed"
	CodeInvalidResponse  = "invalid_response"
	CodeMediaUnavailable = "media_unavailable"
	CodeMediaURLMissing  = "media_url_unavailable"
	CodeMediaRejected    = "media_rejected"
	CodeAccountMissing   = "account_not_linked"
)

var errEmptyResponse = errors.New("platform returned no id")

// APIError is a non-2xx platform response.
type APIError struct {
	Platform string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Platform, e.Status, e.Body)
}

// Code maps the HTTP status to a result code.
func (e *APIError) Code() string {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return CodeUnauthorized
	case e.Status == http.StatusTooManyRequests:
		return CodeRateLimited
	default:
		return CodeAPIError
	}
}

// readAPIError drains resp into an APIError, keeping at most 1KiB of body.
func readAPIError(platform string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &APIError{Platform: platform, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// failed logs and builds an error result. Codes come from APIError when present.
func failed(platform, code string, err error) model.PublishResult {
	var apiErr *APIError
	if errors.As(err, &apiErr) && code == CodeAPIError {
		code = apiErr.Code()
	}
	logger.GetLogger().WithField("platform", platform).WithField("code", code).WithField("error", err).Warn("platform publish failed")
	return model.PublishFailure(platform, code, err.Error())
}

func published(platform, url string) model.PublishResult {
	logger.GetLogger().WithField("platform", platform).WithField("url", url).Info("platform publish succeeded")
	return model.PublishSuccess(platform, url, "published")
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// title is the first non-empty caption line, for platforms that want one.
func title(caption, fallback string, max int) string {
	for _, line := range strings.Split(caption, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return truncateRunes(line, max)
		}
	}
	return fallback
}

// DefaultHTTPClient is used when an adapter is built without one.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Minute}
}
