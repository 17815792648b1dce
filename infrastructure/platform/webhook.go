package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"crosspost/domain/model"
)

// WebhookAdapter forwards posts to a self-hosted endpoint registered under any
// platform name. The endpoint pulls the media from MediaURL and answers {"url": ...}.
type WebhookAdapter struct {
	name string
	url  string
	http *http.Client
}

func NewWebhookAdapter(name, url string, hc *http.Client) *WebhookAdapter {
	if hc == nil {
		hc = DefaultHTTPClient()
	}
	return &WebhookAdapter{name: name, url: url, http: hc}
}

func (a *WebhookAdapter) Platform() string { return a.name }

type webhookPayload struct {
	Platform string              `json:"platform"`
	Account  string              `json:"account,omitempty"`
	Caption  string              `json:"caption"`
	MediaURL string              `json:"media_url"`
	Media    model.MediaResource `json:"media"`
}

type webhookResponse struct {
	URL string `json:"url"`
}

func (a *WebhookAdapter) Publish(ctx context.Context, cred model.Credential, post model.Post) model.PublishResult {
	if post.MediaURL == "" {
		return failed(a.name, CodeMediaURLMissing, fmt.Errorf("%s webhook needs a publicly reachable media url", a.name))
	}
	body, err := json.Marshal(webhookPayload{
		Platform: a.name,
		Account:  cred.Account(),
		Caption:  post.Caption,
		MediaURL: post.MediaURL,
		Media:    post.Media,
	})
	if err != nil {
		return failed(a.name, CodeRequestFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return failed(a.name, CodeRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	resp, err := a.http.Do(req)
	if err != nil {
		return failed(a.name, CodeRequestFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failed(a.name, CodeAPIError, readAPIError(a.name, resp))
	}
	var out webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.URL == "" {
		return failed(a.name, CodeInvalidResponse, fmt.Errorf("%s webhook: missing url in response", a.name))
	}
	return published(a.name, out.URL)
}
