package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crosspost/domain/model"

	"github.com/golang-jwt/jwt"
	"golang.org/x/oauth2"
)

const (
	Bluesky        = "bluesky"
	BlueskyBaseURL = "https://bsky.social/xrpc"
	blueskyMaxText = 300
)

type blueskyClient struct {
	baseURL string
	http    *http.Client
}

func newBlueskyClient(baseURL string, hc *http.Client) *blueskyClient {
	if baseURL == "" {
		baseURL = BlueskyBaseURL
	}
	if hc == nil {
		hc = DefaultHTTPClient()
	}
	return &blueskyClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// call invokes an XRPC procedure. body is JSON-encoded unless it is an io.Reader.
func (c *blueskyClient) call(ctx context.Context, method, nsid, token, contentType string, body interface{}, out interface{}) error {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		r = b
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(raw)
		contentType = "application/json"
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+nsid, r)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(Bluesky, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("bluesky: decode %s: %w", nsid, err)
	}
	return nil
}

// BlueskyAdapter posts via the AT Protocol. The credential's access token is the
// session accessJwt and its account id the DID.
type BlueskyAdapter struct {
	client *blueskyClient
	now    func() time.Time
}

func NewBlueskyAdapter(baseURL string, hc *http.Client) *BlueskyAdapter {
	return &BlueskyAdapter{client: newBlueskyClient(baseURL, hc), now: time.Now}
}

func (a *BlueskyAdapter) Platform() string { return Bluesky }

type blueskySession struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

type blueskyBlobResponse struct {
	Blob json.RawMessage `json:"blob"`
}

type blueskyImage struct {
	Alt   string          `json:"alt"`
	Image json.RawMessage `json:"image"`
}

type blueskyEmbed struct {
	Type   string          `json:"$type"`
	Images []blueskyImage  `json:"images,omitempty"`
	Video  json.RawMessage `json:"video,omitempty"`
	Alt    string          `json:"alt,omitempty"`
}

type blueskyPostRecord struct {
	Type      string        `json:"$type"`
	Text      string        `json:"text"`
	CreatedAt string        `json:"createdAt"`
	Embed     *blueskyEmbed `json:"embed,omitempty"`
}

type blueskyCreateRecord struct {
	Repo       string            `json:"repo"`
	Collection string            `json:"collection"`
	Record     blueskyPostRecord `json:"record"`
}

type blueskyRecordRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

func (a *BlueskyAdapter) Publish(ctx context.Context, cred model.Credential, post model.Post) model.PublishResult {
	did := cred.Account()
	if did == "" {
		var sess blueskySession
		if err := a.client.call(ctx, http.MethodGet, "com.atproto.server.getSession", cred.AccessToken, "", nil, &sess); err != nil {
			return failed(Bluesky, CodeAPIError, err)
		}
		did = sess.DID
	}

	rc, err := post.Open(ctx)
	if err != nil {
		return failed(Bluesky, CodeMediaUnavailable, err)
	}
	defer rc.Close()

	var blob blueskyBlobResponse
	if err := a.client.call(ctx, http.MethodPost, "com.atproto.repo.uploadBlob", cred.AccessToken, post.Media.ContentType, io.Reader(rc), &blob); err != nil {
		return failed(Bluesky, CodeAPIError, err)
	}
	if len(blob.Blob) == 0 {
		return failed(Bluesky, CodeInvalidResponse, errEmptyResponse)
	}

	alt := title(post.Caption, post.Media.FileName, 1000)
	embed := &blueskyEmbed{Type: "app.bsky.embed.images", Images: []blueskyImage{{Alt: alt, Image: blob.Blob}}}
	if post.Media.IsVideo() {
		embed = &blueskyEmbed{Type: "app.bsky.embed.video", Video: blob.Blob, Alt: alt}
	}
	var ref blueskyRecordRef
	err = a.client.call(ctx, http.MethodPost, "com.atproto.repo.createRecord", cred.AccessToken, "", blueskyCreateRecord{
		Repo:       did,
		Collection: "app.bsky.feed.post",
		Record: blueskyPostRecord{
			Type:      "app.bsky.feed.post",
			Text:      truncateRunes(post.Caption, blueskyMaxText),
			CreatedAt: a.now().UTC().Format(time.RFC3339),
			Embed:     embed,
		},
	}, &ref)
	if err != nil {
		return failed(Bluesky, CodeAPIError, err)
	}
	if ref.URI == "" {
		return failed(Bluesky, CodeInvalidResponse, errEmptyResponse)
	}
	return published(Bluesky, blueskyPostURL(did, ref.URI))
}

// blueskyPostURL maps at://did/app.bsky.feed.post/rkey to the bsky.app web link.
func blueskyPostURL(did, uri string) string {
	rkey := uri[strings.LastIndex(uri, "/")+1:]
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", did, rkey)
}

// BlueskyRefresher renews a session with refreshSession. Bluesky rotates the
// refresh JWT on every call.
type BlueskyRefresher struct {
	client *blueskyClient
}

func NewBlueskyRefresher(baseURL string, hc *http.Client) *BlueskyRefresher {
	return &BlueskyRefresher{client: newBlueskyClient(baseURL, hc)}
}

func (r *BlueskyRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	var sess blueskySession
	if err := r.client.call(ctx, http.MethodPost, "com.atproto.server.refreshSession", refreshToken, "", nil, &sess); err != nil {
		return nil, err
	}
	if sess.AccessJwt == "" {
		return nil, errEmptyResponse
	}
	return &oauth2.Token{
		AccessToken:  sess.AccessJwt,
		RefreshToken: sess.RefreshJwt,
		TokenType:    "Bearer",
		Expiry:       jwtExpiry(sess.AccessJwt),
	}, nil
}

// jwtExpiry reads exp without verifying the signature; zero when absent.
func jwtExpiry(token string) time.Time {
	claims := &jwt.StandardClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil || claims.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(claims.ExpiresAt, 0).UTC()
}
