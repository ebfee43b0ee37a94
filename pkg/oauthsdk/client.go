package oauthsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal HTTP client for the authorization server's OAuth2
// endpoints. It is what resource servers and first-party tools use to
// exchange, refresh, revoke and introspect tokens.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a Client for the given base URL (no trailing slash).
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Token posts form values to /oauth/token and decodes the response.
func (c *Client) Token(ctx context.Context, form url.Values) (*TokenResponse, error) {
	body, err := c.postForm(ctx, "/oauth/token", form)
	if err != nil {
		return nil, err
	}

	var resp TokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("oauthsdk: decode token response: %w", err)
	}
	return &resp, nil
}

// Introspect posts to /oauth/introspect with client credentials.
func (c *Client) Introspect(ctx context.Context, token, hint, clientID, clientSecret string) (*IntrospectionResponse, error) {
	form := url.Values{
		"token":         {token},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	if hint != "" {
		form.Set("token_type_hint", hint)
	}

	body, err := c.postForm(ctx, "/oauth/introspect", form)
	if err != nil {
		return nil, err
	}

	var resp IntrospectionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("oauthsdk: decode introspection response: %w", err)
	}
	return &resp, nil
}

// Revoke posts to /oauth/revoke. A nil error only means the server accepted
// the request; per RFC 7009 the server never reveals whether the token
// existed.
func (c *Client) Revoke(ctx context.Context, token, hint, clientID, clientSecret string) error {
	form := url.Values{
		"token":     {token},
		"client_id": {clientID},
	}
	if hint != "" {
		form.Set("token_type_hint", hint)
	}
	if clientSecret != "" {
		form.Set("client_secret", clientSecret)
	}

	_, err := c.postForm(ctx, "/oauth/revoke", form)
	return err
}

// AuthorizeInfo fetches consent-screen metadata for a client/redirect pair.
func (c *Client) AuthorizeInfo(ctx context.Context, clientID, redirectURI, scope string) (*AuthorizeInfoResponse, error) {
	q := url.Values{
		"client_id":    {clientID},
		"redirect_uri": {redirectURI},
	}
	if scope != "" {
		q.Set("scope", scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/oauth/authorize/info?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := parseErrorResponse(resp, body); err != nil {
		return nil, err
	}

	var info AuthorizeInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("oauthsdk: decode authorize info: %w", err)
	}
	return &info, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := parseErrorResponse(resp, body); err != nil {
		return nil, err
	}
	return body, nil
}

// parseErrorResponse converts non-2xx responses into *OAuth2Error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &OAuth2Error{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
