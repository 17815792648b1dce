package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"crosspost/domain/model"
)

const Instagram = "instagram"

// InstagramAdapter publishes through the Instagram Graph content API. Instagram
// pulls the media itself, so the post needs a public MediaURL.
type InstagramAdapter struct {
	graph        *graphClient
	pollInterval time.Duration
	maxPolls     int
}

func NewInstagramAdapter(baseURL string, hc *http.Client) *InstagramAdapter {
	return &InstagramAdapter{graph: newGraphClient(Instagram, baseURL, hc), pollInterval: 3 * time.Second, maxPolls: 40}
}

// WithPolling overrides how often and how long video containers are polled.
func (a *InstagramAdapter) WithPolling(interval time.Duration, maxPolls int) *InstagramAdapter {
	a.pollInterval = interval
	a.maxPolls = maxPolls
	return a
}

func (a *InstagramAdapter) Platform() string { return Instagram }

type instagramContainerParams struct {
	ImageURL    string `url:"image_url,omitempty"`
	VideoURL    string `url:"video_url,omitempty"`
	MediaType   string `url:"media_type,omitempty"`
	Caption     string `url:"caption,omitempty"`
	AccessToken string `url:"access_token"`
}

type instagramPublishParams struct {
	CreationID  string `url:"creation_id"`
	AccessToken string `url:"access_token"`
}

type instagramFieldsParams struct {
	Fields      string `url:"fields"`
	AccessToken string `url:"access_token"`
}

type instagramObject struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Permalink  string `json:"permalink"`
}

func (a *InstagramAdapter) Publish(ctx context.Context, cred model.Credential, post model.Post) model.PublishResult {
	igUser := cred.Account()
	if igUser == "" {
		return failed(Instagram, CodeAccountMissing, fmt.Errorf("no instagram business account linked"))
	}
	if post.MediaURL == "" {
		return failed(Instagram, CodeMediaURLMissing, fmt.Errorf("instagram needs a publicly reachable media url"))
	}

	params := instagramContainerParams{Caption: truncateRunes(post.Caption, 2200), AccessToken: cred.AccessToken}
	if post.Media.IsVideo() {
		params.VideoURL = post.MediaURL
		params.MediaType = "REELS"
	} else {
		params.ImageURL = post.MediaURL
	}
	var container instagramObject
	if err := a.graph.postForm(ctx, url.PathEscape(igUser)+"/media", params, &container); err != nil {
		return failed(Instagram, CodeAPIError, err)
	}
	if container.ID == "" {
		return failed(Instagram, CodeInvalidResponse, errEmptyResponse)
	}
	if post.Media.IsVideo() {
		if err := a.waitForContainer(ctx, container.ID, cred.AccessToken); err != nil {
			return failed(Instagram, CodeMediaRejected, err)
		}
	}

	var media instagramObject
	if err := a.graph.postForm(ctx, url.PathEscape(igUser)+"/media_publish", instagramPublishParams{
		CreationID:  container.ID,
		AccessToken: cred.AccessToken,
	}, &media); err != nil {
		return failed(Instagram, CodeAPIError, err)
	}
	if media.ID == "" {
		return failed(Instagram, CodeInvalidResponse, errEmptyResponse)
	}

	link := "https://www.instagram.com/"
	var detail instagramObject
	if err := a.graph.get(ctx, url.PathEscape(media.ID), instagramFieldsParams{Fields: "permalink", AccessToken: cred.AccessToken}, &detail); err == nil && detail.Permalink != "" {
		link = detail.Permalink
	}
	return published(Instagram, link)
}

// waitForContainer polls until Instagram has fetched and transcoded the video.
func (a *InstagramAdapter) waitForContainer(ctx context.Context, id, token string) error {
	for i := 0; i < a.maxPolls; i++ {
		var obj instagramObject
		if err := a.graph.get(ctx, url.PathEscape(id), instagramFieldsParams{Fields: "status_code", AccessToken: token}, &obj); err != nil {
			return err
		}
		switch obj.StatusCode {
		case "FINISHED", "PUBLISHED":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("instagram container %s: %s", id, obj.StatusCode)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.pollInterval):
		}
	}
	return fmt.Errorf("instagram container %s not ready after %d polls", id, a.maxPolls)
}
