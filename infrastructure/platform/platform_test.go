package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"crosspost/domain/model"
	"crosspost/infrastructure/configuration"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

func testPost(contentType string, content []byte) model.Post {
	return model.Post{
		Caption:  "Sunset over the bay\nshot on film",
		Media:    model.MediaResource{Handle: "h1", FileName: "file.bin", ContentType: contentType, Size: int64(len(content))},
		MediaURL: "https://media.example.com/media/h1",
		Open: func(context.Context) (io.ReadSeekCloser, error) {
			return readSeekNopCloser{bytes.NewReader(content)}, nil
		},
	}
}

func cred(platform, account string) model.Credential {
	c := model.Credential{UserID: "u1", Platform: platform, AccessToken: "tok-" + platform}
	if account != "" {
		c.AccountID = &account
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestFacebookAdapter_Photo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/page-1/photos", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "tok-facebook", r.FormValue("access_token"))
		assert.Contains(t, r.FormValue("caption"), "Sunset")
		if f, _, err := r.FormFile("source"); assert.NoError(t, err) {
			b, _ := io.ReadAll(f)
			assert.Equal(t, "jpeg-bytes", string(b))
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": "photo-1", "post_id": "page-1_post-9"})
	}))
	defer srv.Close()

	res := NewFacebookAdapter(srv.URL, srv.Client()).Publish(context.Background(), cred(Facebook, "page-1"), testPost("image/jpeg", []byte("jpeg-bytes")))

	assert.Equal(t, model.PublishStatusSuccess, res.Status)
	require.NotNil(t, res.PlatformURL)
	assert.Equal(t, "https://www.facebook.com/page-1_post-9", *res.PlatformURL)
}

func TestFacebookAdapter_VideoAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page-1/videos" {
			writeJSON(w, http.StatusOK, map[string]string{"id": "v-1"})
			return
		}
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"error": map[string]string{"message": "expired"}})
	}))
	defer srv.Close()
	a := NewFacebookAdapter(srv.URL, srv.Client())

	res := a.Publish(context.Background(), cred(Facebook, "page-1"), testPost("video/mp4", []byte("mp4")))
	require.Equal(t, model.PublishStatusSuccess, res.Status)
	assert.Equal(t, "https://www.facebook.com/page-1/videos/v-1", *res.PlatformURL)

	res = a.Publish(context.Background(), cred(Facebook, "page-2"), testPost("image/png", []byte("png")))
	assert.Equal(t, model.PublishStatusError, res.Status)
	assert.Equal(t, CodeUnauthorized, *res.ErrorCode)
	assert.Nil(t, res.PlatformURL)

	res = a.Publish(context.Background(), cred(Facebook, ""), testPost("image/png", []byte("png")))
	assert.Equal(t, CodeAccountMissing, *res.ErrorCode)
}

func TestGraphRefresher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/access_token", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "fb_exchange_token", q.Get("grant_type"))
		assert.Equal(t, "cid", q.Get("client_id"))
		assert.Equal(t, "old-long-lived", q.Get("fb_exchange_token"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "new-long-lived", "token_type": "bearer", "expires_in": 3600})
	}))
	defer srv.Close()

	r := NewGraphRefresher(Facebook, "cid", "secret", srv.URL, srv.Client())
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	tok, err := r.Refresh(context.Background(), "old-long-lived")
	require.NoError(t, err)
	assert.Equal(t, "new-long-lived", tok.AccessToken)
	assert.Equal(t, "new-long-lived", tok.RefreshToken)
	assert.Equal(t, now.Add(time.Hour), tok.Expiry)
}

func TestInstagramAdapter_Reel(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/ig-1/media":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "REELS", r.PostForm.Get("media_type"))
			assert.Equal(t, "https://media.example.com/media/h1", r.PostForm.Get("video_url"))
			writeJSON(w, http.StatusOK, map[string]string{"id": "container-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/container-1":
			status := "IN_PROGRESS"
			if polls.Add(1) > 1 {
				status = "FINISHED"
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": "container-1", "status_code": status})
		case r.Method == http.MethodPost && r.URL.Path == "/ig-1/media_publish":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "container-1", r.PostForm.Get("creation_id"))
			writeJSON(w, http.StatusOK, map[string]string{"id": "media-7"})
		case r.Method == http.MethodGet && r.URL.Path == "/media-7":
			writeJSON(w, http.StatusOK, map[string]string{"id": "media-7", "permalink": "https://www.instagram.com/reel/abc/"})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := NewInstagramAdapter(srv.URL, srv.Client()).WithPolling(time.Millisecond, 5)
	res := a.Publish(context.Background(), cred(Instagram, "ig-1"), testPost("video/mp4", []byte("mp4")))

	require.Equal(t, model.PublishStatusSuccess, res.Status, res.Message)
	assert.Equal(t, "https://www.instagram.com/reel/abc/", *res.PlatformURL)
	assert.Equal(t, int32(2), polls.Load())
}

func TestInstagramAdapter_NeedsMediaURL(t *testing.T) {
	post := testPost("image/jpeg", []byte("x"))
	post.MediaURL = ""
	res := NewInstagramAdapter("http://unused", nil).Publish(context.Background(), cred(Instagram, "ig-1"), post)
	assert.Equal(t, CodeMediaURLMissing, *res.ErrorCode)
}

func TestXAdapter_UploadAndTweet(t *testing.T) {
	var appended atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-x", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/2/media/upload/initialize":
			var body xInitRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, int64(9), body.TotalBytes)
			assert.Equal(t, "tweet_image", body.MediaCategory)
			writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]string{"id": "m-1"}})
		case "/2/media/upload/m-1/append":
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "0", r.FormValue("segment_index"))
			appended.Add(1)
			w.WriteHeader(http.StatusNoContent)
		case "/2/media/upload/m-1/finalize":
			writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]string{"id": "m-1"}})
		case "/2/tweets":
			var body xTweetRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"m-1"}, body.Media.MediaIDs)
			writeJSON(w, http.StatusCreated, map[string]interface{}{"data": map[string]string{"id": "1800"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	res := NewXAdapter(srv.URL, srv.Client()).Publish(context.Background(), cred(X, ""), testPost("image/png", []byte("png-bytes")))

	require.Equal(t, model.PublishStatusSuccess, res.Status, res.Message)
	assert.Equal(t, "https://x.com/i/web/status/1800", *res.PlatformURL)
	assert.Equal(t, int32(1), appended.Load())
}

func TestXAdapter_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{"title": "Too Many Requests", "status": 429})
	}))
	defer srv.Close()

	res := NewXAdapter(srv.URL, srv.Client()).Publish(context.Background(), cred(X, ""), testPost("image/png", []byte("png")))
	assert.Equal(t, model.PublishStatusError, res.Status)
	assert.Equal(t, CodeRateLimited, *res.ErrorCode)
	assert.Contains(t, res.Message, "Too Many Requests")
}

func TestXRefresher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "cid", user)
		writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "at-2", "refresh_token": "rt-2", "token_type": "bearer", "expires_in": 7200})
	}))
	defer srv.Close()

	tok, err := NewXRefresher("cid", "secret", srv.URL+"/2/oauth2/token", srv.Client()).Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", tok.AccessToken)
	assert.Equal(t, "rt-2", tok.RefreshToken)
	assert.False(t, tok.Expiry.IsZero())
}

func TestOAuth2Refresher_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
	}))
	defer srv.Close()

	_, err := NewXRefresher("cid", "secret", srv.URL, srv.Client()).Refresh(context.Background(), "revoked")
	assert.Error(t, err)
}

func TestBlueskyAdapter_Image(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-bluesky", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/xrpc/com.atproto.repo.uploadBlob":
			assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
			b, _ := io.ReadAll(r.Body)
			assert.Equal(t, "jpeg", string(b))
			writeJSON(w, http.StatusOK, map[string]interface{}{"blob": map[string]interface{}{"$type": "blob", "ref": map[string]string{"$link": "bafy"}, "mimeType": "image/jpeg", "size": 4}})
		case "/xrpc/com.atproto.repo.createRecord":
			var body blueskyCreateRecord
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "did:plc:abc", body.Repo)
			assert.Equal(t, "app.bsky.embed.images", body.Record.Embed.Type)
			if assert.Len(t, body.Record.Embed.Images, 1) {
				assert.Equal(t, "Sunset over the bay", body.Record.Embed.Images[0].Alt)
			}
			writeJSON(w, http.StatusOK, map[string]string{"uri": "at://did:plc:abc/app.bsky.feed.post/3kxyz", "cid": "bafyrei"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	res := NewBlueskyAdapter(srv.URL+"/xrpc", srv.Client()).Publish(context.Background(), cred(Bluesky, "did:plc:abc"), testPost("image/jpeg", []byte("jpeg")))

	require.Equal(t, model.PublishStatusSuccess, res.Status, res.Message)
	assert.Equal(t, "https://bsky.app/profile/did:plc:abc/post/3kxyz", *res.PlatformURL)
}

func TestBlueskyAdapter_ResolvesDIDFromSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/com.atproto.server.getSession":
			writeJSON(w, http.StatusOK, map[string]string{"did": "did:plc:zzz", "handle": "me.bsky.social"})
		case "/com.atproto.repo.uploadBlob":
			writeJSON(w, http.StatusOK, map[string]interface{}{"blob": map[string]string{"$type": "blob"}})
		case "/com.atproto.repo.createRecord":
			writeJSON(w, http.StatusOK, map[string]string{"uri": "at://did:plc:zzz/app.bsky.feed.post/r1"})
		}
	}))
	defer srv.Close()

	res := NewBlueskyAdapter(srv.URL, srv.Client()).Publish(context.Background(), cred(Bluesky, ""), testPost("video/mp4", []byte("mp4")))
	require.Equal(t, model.PublishStatusSuccess, res.Status, res.Message)
	assert.Equal(t, "https://bsky.app/profile/did:plc:zzz/post/r1", *res.PlatformURL)
}

func TestBlueskyRefresher(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Unix()
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{ExpiresAt: exp}).SignedString([]byte("k"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/com.atproto.server.refreshSession", r.URL.Path)
		assert.Equal(t, "Bearer refresh-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, blueskySession{DID: "did:plc:abc", AccessJwt: access, RefreshJwt: "refresh-2"})
	}))
	defer srv.Close()

	tok, err := NewBlueskyRefresher(srv.URL, srv.Client()).Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, access, tok.AccessToken)
	assert.Equal(t, "refresh-2", tok.RefreshToken)
	assert.Equal(t, exp, tok.Expiry.Unix())
}

func TestYouTubeAdapter_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-youtube", r.Header.Get("Authorization"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/youtube/v3/videos"), r.URL.Path)
		assert.ElementsMatch(t, []string{"snippet", "status"}, strings.Split(strings.Join(r.URL.Query()["part"], ","), ","))
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": "vid-42"})
	}))
	defer srv.Close()

	res := NewYouTubeAdapter(srv.URL+"/", srv.Client()).Publish(context.Background(), cred(YouTube, ""), testPost("video/mp4", []byte("mp4")))

	require.Equal(t, model.PublishStatusSuccess, res.Status, res.Message)
	assert.Equal(t, "https://youtu.be/vid-42", *res.PlatformURL)
}

func TestYouTubeAdapter_RejectsImages(t *testing.T) {
	res := NewYouTubeAdapter("", nil).Publish(context.Background(), cred(YouTube, ""), testPost("image/png", []byte("png")))
	assert.Equal(t, CodeMediaRejected, *res.ErrorCode)
}

func TestWebhookAdapter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body webhookPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "threads", body.Platform)
		assert.Equal(t, "https://media.example.com/media/h1", body.MediaURL)
		assert.Equal(t, "Bearer tok-threads", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]string{"url": "https://threads.net/p/1"})
	}))
	defer srv.Close()

	res := NewWebhookAdapter("threads", srv.URL, srv.Client()).Publish(context.Background(), cred("threads", ""), testPost("image/png", []byte("png")))
	require.Equal(t, model.PublishStatusSuccess, res.Status, res.Message)
	assert.Equal(t, "https://threads.net/p/1", *res.PlatformURL)
}

func TestMediaOpenFailure(t *testing.T) {
	post := testPost("image/png", nil)
	post.Open = func(context.Context) (io.ReadSeekCloser, error) { return nil, errors.New("gone") }

	for _, a := range []interface {
		Publish(context.Context, model.Credential, model.Post) model.PublishResult
	}{
		NewFacebookAdapter("http://unused", nil),
		NewXAdapter("http://unused", nil),
		NewBlueskyAdapter("http://unused", nil),
	} {
		res := a.Publish(context.Background(), cred("p", "acct"), post)
		assert.Equal(t, CodeMediaUnavailable, *res.ErrorCode, fmt.Sprintf("%T", a))
	}
}

func TestRegistryFromConfig(t *testing.T) {
	cfg := &configuration.Config{
		Publish:  configuration.Publish{Platforms: []string{"youtube", "facebook", "x", "bluesky", "instagram", "myspace"}},
		Webhooks: map[string]string{"threads": "https://hooks/threads", "facebook": "https://hooks/fb"},
	}
	reg := NewRegistryFromConfig(cfg, nil)

	assert.Equal(t, []string{"youtube", "facebook", "x", "bluesky", "instagram", "threads"}, reg.Platforms())
	for _, p := range []string{"youtube", "facebook", "x", "bluesky", "instagram"} {
		_, ok := reg.Refresher(p)
		assert.True(t, ok, p)
	}
	a, ok := reg.Adapter("facebook")
	require.True(t, ok)
	assert.IsType(t, &FacebookAdapter{}, a)
	_, ok = reg.Refresher("threads")
	assert.False(t, ok)
	_, ok = reg.Adapter("myspace")
	assert.False(t, ok)
}
