package openid4vp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client is the wallet-side authorization engine: it resolves engagement
// links into typed requests and posts authorization responses.
type Client struct {
	httpClient *http.Client
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(client)
	}
	return client
}

// ParseEngagementURI parses the QR-originated engagement link. Anything
// that does not parse as a URI with a scheme is malformed.
func ParseEngagementURI(raw string) (*url.URL, error) {
	uri, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse engagement link: %w", err)
	}
	if uri.Scheme == "" {
		return nil, fmt.Errorf("engagement link has no scheme")
	}
	return uri, nil
}

// Authorize resolves an engagement link into a classified request. A
// request object is fetched by reference (request_uri) or read by value
// (request); bare query parameters resolve to Unsecured. The trust
// callback runs while the request object is validated and its result is
// returned on the AuthorizeResult.
func (c *Client) Authorize(ctx context.Context, uri *url.URL, trust ChainVerifier) (*AuthorizeResult, error) {
	query := uri.Query()

	var token string
	switch {
	case query.Get("request_uri") != "":
		fetched, err := c.fetchRequestObject(ctx, query.Get("request_uri"))
		if err != nil {
			return nil, err
		}
		token = fetched
	case query.Get("request") != "":
		token = query.Get("request")
	default:
		return &AuthorizeResult{Request: Unsecured{Params: query}}, nil
	}

	ar, readerAuth, err := ParseRequestObject(token, trust)
	if err != nil {
		return nil, err
	}

	result := &AuthorizeResult{ReaderAuth: readerAuth}
	if ar.ResponseType == "vp_token" {
		result.Request = VPTokenRequest{AuthorizationRequest: *ar}
	} else {
		result.Request = UnknownRequest{ResponseType: ar.ResponseType}
	}
	return result, nil
}

func (c *Client) fetchRequestObject(ctx context.Context, requestURI string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURI, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/oauth-authz-req+jwt")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch request object: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status fetching request object: %s", res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read request object: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}
