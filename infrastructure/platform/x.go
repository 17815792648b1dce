package platform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"crosspost/domain/model"

	"github.com/dghubble/sling"
)

const (
	X          = "x"
	XBaseURL   = "https://api.x.com/"
	xChunkSize = 4 << 20
)

// XAdapter posts through the X API v2: chunked media upload, then a tweet.
type XAdapter struct {
	base         *sling.Sling
	pollInterval time.Duration
	maxPolls     int
}

func NewXAdapter(baseURL string, hc *http.Client) *XAdapter {
	if baseURL == "" {
		baseURL = XBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if hc == nil {
		hc = DefaultHTTPClient()
	}
	return &XAdapter{base: sling.New().Client(hc).Base(baseURL), pollInterval: 2 * time.Second, maxPolls: 60}
}

func (a *XAdapter) Platform() string { return X }

type xProcessingInfo struct {
	State          string `json:"state"`
	CheckAfterSecs int    `json:"check_after_secs"`
	Error          *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type xMediaResponse struct {
	Data struct {
		ID             string           `json:"id"`
		ProcessingInfo *xProcessingInfo `json:"processing_info"`
	} `json:"data"`
}

type xInitRequest struct {
	MediaType     string `json:"media_type"`
	TotalBytes    int64  `json:"total_bytes"`
	MediaCategory string `json:"media_category"`
}

type xStatusParams struct {
	MediaID string `url:"media_id"`
	Command string `url:"command"`
}

type xTweetRequest struct {
	Text  string       `json:"text"`
	Media *xTweetMedia `json:"media,omitempty"`
}

type xTweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type xTweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type xError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

func (e *xError) String() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

func (a *XAdapter) Publish(ctx context.Context, cred model.Credential, post model.Post) model.PublishResult {
	api := a.base.New().Set("Authorization", "Bearer "+cred.AccessToken)

	rc, err := post.Open(ctx)
	if err != nil {
		return failed(X, CodeMediaUnavailable, err)
	}
	defer rc.Close()

	mediaID, err := a.upload(ctx, api, post.Media, rc)
	if err != nil {
		return failed(X, CodeAPIError, err)
	}

	var tweet xTweetResponse
	err = xDo(ctx, api.New().Post("2/tweets").BodyJSON(xTweetRequest{
		Text:  truncateRunes(post.Caption, 280),
		Media: &xTweetMedia{MediaIDs: []string{mediaID}},
	}), &tweet)
	if err != nil {
		return failed(X, CodeAPIError, err)
	}
	if tweet.Data.ID == "" {
		return failed(X, CodeInvalidResponse, errEmptyResponse)
	}
	return published(X, "https://x.com/i/web/status/"+tweet.Data.ID)
}

func (a *XAdapter) upload(ctx context.Context, api *sling.Sling, media model.MediaResource, rc io.ReadSeeker) (string, error) {
	size, err := rc.Seek(0, io.SeekEnd)
	if err != nil {
		return "", err
	}
	if _, err := rc.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	var started xMediaResponse
	err = xDo(ctx, api.New().Post("2/media/upload/initialize").BodyJSON(xInitRequest{
		MediaType:     media.ContentType,
		TotalBytes:    size,
		MediaCategory: xMediaCategory(media),
	}), &started)
	if err != nil {
		return "", err
	}
	id := started.Data.ID
	if id == "" {
		return "", errEmptyResponse
	}

	buf := make([]byte, xChunkSize)
	for segment := 0; ; segment++ {
		n, rerr := io.ReadFull(rc, buf)
		if n > 0 {
			if err := a.appendChunk(ctx, api, id, segment, buf[:n]); err != nil {
				return "", err
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return "", rerr
		}
	}

	var fin xMediaResponse
	if err := xDo(ctx, api.New().Post("2/media/upload/"+id+"/finalize"), &fin); err != nil {
		return "", err
	}
	return id, a.waitForProcessing(ctx, api, id, fin.Data.ProcessingInfo)
}

func (a *XAdapter) appendChunk(ctx context.Context, api *sling.Sling, id string, segment int, chunk []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("segment_index", fmt.Sprint(segment)); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("media", "chunk")
	if err != nil {
		return err
	}
	if _, err := part.Write(chunk); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return xDo(ctx, api.New().Post("2/media/upload/"+id+"/append").
		Set("Content-Type", mw.FormDataContentType()).
		Body(&body), nil)
}

func (a *XAdapter) waitForProcessing(ctx context.Context, api *sling.Sling, id string, info *xProcessingInfo) error {
	for i := 0; info != nil && i < a.maxPolls; i++ {
		switch info.State {
		case "succeeded":
			return nil
		case "failed":
			msg := "processing failed"
			if info.Error != nil {
				msg = info.Error.Message
			}
			return fmt.Errorf("x media %s: %s", id, msg)
		}
		wait := a.pollInterval
		if info.CheckAfterSecs > 0 {
			wait = time.Duration(info.CheckAfterSecs) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		var st xMediaResponse
		if err := xDo(ctx, api.New().Get("2/media/upload").QueryStruct(xStatusParams{MediaID: id, Command: "STATUS"}), &st); err != nil {
			return err
		}
		info = st.Data.ProcessingInfo
	}
	if info != nil {
		return fmt.Errorf("x media %s still %s after %d polls", id, info.State, a.maxPolls)
	}
	return nil
}

// xDo sends the request built by s and decodes either the success body or the X error body.
func xDo(ctx context.Context, s *sling.Sling, success interface{}) error {
	req, err := s.Request()
	if err != nil {
		return err
	}
	apiErr := new(xError)
	resp, err := s.Do(req.WithContext(ctx), success, apiErr)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Platform: X, Status: resp.StatusCode, Body: apiErr.String()}
	}
	return nil
}

func xMediaCategory(m model.MediaResource) string {
	switch {
	case m.IsVideo():
		return "tweet_video"
	case m.ContentType == "image/gif":
		return "tweet_gif"
	default:
		return "tweet_image"
	}
}
