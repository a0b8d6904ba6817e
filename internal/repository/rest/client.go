// Package rest holds the HTTP plumbing shared by the collaborator
// repositories: base URL resolution, timeouts and request headers.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20 // 4 MB
)

// CredentialFunc returns the bearer credential to attach to a request. An
// empty string sends no Authorization header.
type CredentialFunc func() string

// StaticCredential returns a CredentialFunc that always yields token.
func StaticCredential(token string) CredentialFunc {
	return func() string { return token }
}

// Client issues requests against the collaborator base URL.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	credential CredentialFunc
}

// NewClient validates baseURL and builds a client with the given timeout
// (defaultTimeout if timeout <= 0).
func NewClient(baseURL string, timeout time.Duration, credential CredentialFunc) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if credential == nil {
		credential = StaticCredential("")
	}
	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		credential: credential,
	}, nil
}

// Response is a fully read collaborator reply.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Do sends method to path (escaped form) with payload JSON-encoded as the body (nil sends
// none) and reads the whole reply. Only transport failures are returned as
// errors; status handling is left to the caller.
func (c *Client) Do(ctx context.Context, method, path string, payload any) (Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Response{}, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	target, err := c.resolve(path)
	if err != nil {
		return Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.credential(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read response body: %w", err)
	}
	return Response{Status: resp.StatusCode, Body: data}, nil
}

// resolve joins path onto the base URL path. path is in escaped form, so a
// segment built with url.PathEscape keeps its %2F on the wire.
func (c *Client) resolve(path string) (string, error) {
	raw := strings.TrimRight(c.baseURL.EscapedPath(), "/") + "/" + strings.TrimLeft(path, "/")
	unescaped, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}
	u := *c.baseURL
	u.Path, u.RawPath = unescaped, raw
	return u.String(), nil
}
