// Package client performs single authenticated HTTP requests against the
// controller API. No caching and no retries live here; both belong to the
// callers (the resource cache polls, mutations are user-initiated).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"peerdesk/pkg/token"
	"peerdesk/pkg/version"
)

const (
	defaultTimeout = 15 * time.Second

	// maxResponseSize caps response bodies; the controller never returns
	// anything near this.
	maxResponseSize = 10 * 1024 * 1024
)

type Client struct {
	baseURL string
	http    *http.Client
	tokens  *token.Store
}

// New builds a client for the controller at baseURL. A nil httpClient gets a
// default with a sane timeout.
func New(baseURL string, httpClient *http.Client, tokens *token.Store) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
		tokens:  tokens,
	}
}

// do issues one request and decodes a JSON response into out (when non-nil).
// With requiresAuth and no credential present it fails fast as
// ErrUnauthenticated without touching the network.
func (c *Client) do(ctx context.Context, method, path string, payload any, requiresAuth bool, out any) error {
	body, err := c.doRaw(ctx, method, path, payload, requiresAuth)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, path string, payload any, requiresAuth bool) ([]byte, error) {
	tok, haveToken := c.tokens.Get()
	if requiresAuth && !haveToken {
		return nil, ErrUnauthenticated
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "peerdesk/"+version.Build)
	if haveToken {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(resp.StatusCode, body)
	}
	return body, nil
}

// errorFromResponse parses the controller's { "detail": ... } error payload;
// an unparseable body degrades to a bare status error.
func errorFromResponse(status int, body []byte) error {
	var payload struct {
		Detail string `json:"detail"`
	}
	detail := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		detail = payload.Detail
	}
	// 401 means the credential itself is missing or dead. 403 is a live
	// credential short on privileges and stays an APIError; forcing a
	// re-login would not change the outcome.
	if status == http.StatusUnauthorized {
		if detail != "" {
			return fmt.Errorf("%w: %s", ErrUnauthenticated, detail)
		}
		return ErrUnauthenticated
	}
	return &APIError{Status: status, Detail: detail}
}
