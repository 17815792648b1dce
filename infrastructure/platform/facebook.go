package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"crosspost/domain/model"
)

const Facebook = "facebook"

// FacebookAdapter posts to a Facebook Page. The credential's access token is the
// Page token and its account id the Page id.
type FacebookAdapter struct {
	graph *graphClient
}

func NewFacebookAdapter(baseURL string, hc *http.Client) *FacebookAdapter {
	return &FacebookAdapter{graph: newGraphClient(Facebook, baseURL, hc)}
}

func (a *FacebookAdapter) Platform() string { return Facebook }

type facebookPhotoParams struct {
	Caption     string `url:"caption,omitempty"`
	AccessToken string `url:"access_token"`
}

type facebookVideoParams struct {
	Title       string `url:"title,omitempty"`
	Description string `url:"description,omitempty"`
	AccessToken string `url:"access_token"`
}

type facebookPostResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

func (a *FacebookAdapter) Publish(ctx context.Context, cred model.Credential, post model.Post) model.PublishResult {
	pageID := cred.Account()
	if pageID == "" {
		return failed(Facebook, CodeAccountMissing, fmt.Errorf("no facebook page linked"))
	}
	rc, err := post.Open(ctx)
	if err != nil {
		return failed(Facebook, CodeMediaUnavailable, err)
	}
	defer rc.Close()

	var out facebookPostResponse
	if post.Media.IsVideo() {
		err = a.graph.postFile(ctx, url.PathEscape(pageID)+"/videos", facebookVideoParams{
			Title:       title(post.Caption, "", 255),
			Description: post.Caption,
			AccessToken: cred.AccessToken,
		}, post.Media.FileName, rc, &out)
	} else {
		err = a.graph.postFile(ctx, url.PathEscape(pageID)+"/photos", facebookPhotoParams{
			Caption:     post.Caption,
			AccessToken: cred.AccessToken,
		}, post.Media.FileName, rc, &out)
	}
	if err != nil {
		return failed(Facebook, CodeAPIError, err)
	}
	if out.ID == "" {
		return failed(Facebook, CodeInvalidResponse, errEmptyResponse)
	}
	if post.Media.IsVideo() {
		return published(Facebook, fmt.Sprintf("https://www.facebook.com/%s/videos/%s", pageID, out.ID))
	}
	id := out.PostID
	if id == "" {
		id = out.ID
	}
	return published(Facebook, "https://www.facebook.com/"+id)
}
