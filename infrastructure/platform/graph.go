package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"golang.org/x/oauth2"
)

// GraphBaseURL is the Facebook Graph API root shared by Facebook and Instagram.
const GraphBaseURL = "https://graph.facebook.com/v19.0"

// graphClient talks to the Graph API. Parameters are structs with url tags.
type graphClient struct {
	platform string
	baseURL  string
	http     *http.Client
}

func newGraphClient(platform, baseURL string, hc *http.Client) *graphClient {
	if baseURL == "" {
		baseURL = GraphBaseURL
	}
	if hc == nil {
		hc = DefaultHTTPClient()
	}
	return &graphClient{platform: platform, baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (g *graphClient) endpoint(path string) string {
	return g.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (g *graphClient) get(ctx context.Context, path string, params interface{}, out interface{}) error {
	v, err := query.Values(params)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint(path)+"?"+v.Encode(), nil)
	if err != nil {
		return err
	}
	return g.do(req, out)
}

func (g *graphClient) postForm(ctx context.Context, path string, params interface{}, out interface{}) error {
	v, err := query.Values(params)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(path), strings.NewReader(v.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return g.do(req, out)
}

// postFile streams a multipart upload with the file under field "source".
func (g *graphClient) postFile(ctx context.Context, path string, params interface{}, fileName string, file io.Reader, out interface{}) error {
	v, err := query.Values(params)
	if err != nil {
		return err
	}
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(mw, v, "source", fileName, file))
	}()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(path), pr)
	if err != nil {
		_ = pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return g.do(req, out)
}

func writeMultipart(mw *multipart.Writer, fields url.Values, fileField, fileName string, file io.Reader) error {
	for k := range fields {
		if err := mw.WriteField(k, fields.Get(k)); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile(fileField, fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return mw.Close()
}

func (g *graphClient) do(req *http.Request, out interface{}) error {
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(g.platform, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", g.platform, err)
	}
	return nil
}

type graphTokenExchange struct {
	GrantType     string `url:"grant_type"`
	ClientID      string `url:"client_id"`
	ClientSecret  string `url:"client_secret"`
	ExchangeToken string `url:"fb_exchange_token"`
}

type graphTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// GraphRefresher renews Facebook and Instagram long-lived tokens with fb_exchange_token.
// Graph has no separate refresh token: the new long-lived token doubles as the next one.
type GraphRefresher struct {
	graph        *graphClient
	clientID     string
	clientSecret string
	now          func() time.Time
}

func NewGraphRefresher(platform, clientID, clientSecret, baseURL string, hc *http.Client) *GraphRefresher {
	return &GraphRefresher{
		graph:        newGraphClient(platform, baseURL, hc),
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

func (r *GraphRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	var out graphTokenResponse
	err := r.graph.get(ctx, "oauth/access_token", graphTokenExchange{
		GrantType:     "fb_exchange_token",
		ClientID:      r.clientID,
		ClientSecret:  r.clientSecret,
		ExchangeToken: refreshToken,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, errEmptyResponse
	}
	tok := &oauth2.Token{AccessToken: out.AccessToken, TokenType: out.TokenType, RefreshToken: out.AccessToken}
	if out.ExpiresIn > 0 {
		tok.Expiry = r.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return tok, nil
}
