package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"crosspost/domain/model"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const YouTube = "youtube"

// YouTubeAdapter uploads the media as a video to the authenticated channel.
type YouTubeAdapter struct {
	endpoint string
	http     *http.Client
	privacy  string
}

// NewYouTubeAdapter builds the adapter; endpoint overrides the API root when non-empty.
func NewYouTubeAdapter(endpoint string, hc *http.Client) *YouTubeAdapter {
	if hc == nil {
		hc = DefaultHTTPClient()
	}
	return &YouTubeAdapter{endpoint: endpoint, http: hc, privacy: "public"}
}

func (a *YouTubeAdapter) Platform() string { return YouTube }

func (a *YouTubeAdapter) service(ctx context.Context, cred model.Credential) (*youtube.Service, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.http)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.AccessToken, TokenType: "Bearer"})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if a.endpoint != "" {
		opts = append(opts, option.WithEndpoint(a.endpoint))
	}
	return youtube.NewService(ctx, opts...)
}

func (a *YouTubeAdapter) Publish(ctx context.Context, cred model.Credential, post model.Post) model.PublishResult {
	if !post.Media.IsVideo() {
		return failed(YouTube, CodeMediaRejected, fmt.Errorf("youtube only accepts video, got %q", post.Media.ContentType))
	}
	svc, err := a.service(ctx, cred)
	if err != nil {
		return failed(YouTube, CodeRequestFailed, err)
	}
	rc, err := post.Open(ctx)
	if err != nil {
		return failed(YouTube, CodeMediaUnavailable, err)
	}
	defer rc.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title(post.Caption, post.Media.FileName, 100),
			Description: truncateRunes(post.Caption, 5000),
		},
		Status: &youtube.VideoStatus{PrivacyStatus: a.privacy},
	}
	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(rc, googleapi.ContentType(post.Media.ContentType)).
		Context(ctx).
		Do()
	if err != nil {
		return failed(YouTube, youtubeCode(err), err)
	}
	if uploaded.Id == "" {
		return failed(YouTube, CodeInvalidResponse, errEmptyResponse)
	}
	return published(YouTube, "https://youtu.be/"+uploaded.Id)
}

func youtubeCode(err error) string {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return CodeRequestFailed
	}
	return (&APIError{Platform: YouTube, Status: gErr.Code}).Code()
}
