// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type (
	// HubClient queries the Docker Hub API for tag digests.
	HubClient struct {
		httpClient *http.Client
		baseURL    string // API base URL (default: "https://hub.docker.com/v2", overridable for tests)
		userAgent  string
	}

	// HubOption configures a HubClient during construction.
	HubOption func(*HubClient)

	// hubTag is the JSON wire format for a Docker Hub tag response.
	hubTag struct {
		Name   string `json:"name"`
		Digest string `json:"digest"`
	}
)

// WithHubHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHubHTTPClient(c *http.Client) HubOption {
	return func(h *HubClient) {
		h.httpClient = c
	}
}

// WithHubBaseURL overrides the Docker Hub API base URL, primarily for test servers.
func WithHubBaseURL(base string) HubOption {
	return func(h *HubClient) {
		h.baseURL = strings.TrimRight(base, "/")
	}
}

// NewHubClient creates a HubClient with sensible defaults.
func NewHubClient(opts ...HubOption) *HubClient {
	c := &HubClient{
		httpClient: http.DefaultClient,
		baseURL:    "https://hub.docker.com/v2",
		userAgent:  "kiln/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveTag returns the manifest digest for repository:tag.
// Official images without a namespace (e.g. "python") are queried under the
// "library" namespace, matching Docker Hub conventions.
func (c *HubClient) ResolveTag(ctx context.Context, repository, tag string) (string, error) {
	if !strings.Contains(repository, "/") {
		repository = "library/" + repository
	}

	reqURL := fmt.Sprintf("%s/repositories/%s/tags/%s",
		c.baseURL, repository, url.PathEscape(tag))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying docker hub: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s:%s", ErrTagNotFound, repository, tag)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: docker hub repository %s", ErrMissingCredentials, repository)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("querying docker hub: unexpected status %d", resp.StatusCode)
	}

	var t hubTag
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&t); err != nil {
		return "", fmt.Errorf("decoding docker hub response: %w", err)
	}

	if t.Digest == "" {
		return "", fmt.Errorf("%w: %s:%s has no digest", ErrTagNotFound, repository, tag)
	}

	return t.Digest, nil
}
