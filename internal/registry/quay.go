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

// maxJSONResponseBytes is the upper bound on JSON API response size (10 MB).
// Prevents unbounded memory consumption from malformed responses.
const maxJSONResponseBytes = 10 << 20

type (
	// QuayClient queries the quay.io repository API for tag digests.
	QuayClient struct {
		httpClient *http.Client
		baseURL    string // API base URL (default: "https://quay.io/api/v1", overridable for tests)
		userAgent  string
	}

	// QuayOption configures a QuayClient during construction.
	QuayOption func(*QuayClient)

	// quayTagPage is the JSON wire format for a quay.io tag listing response.
	quayTagPage struct {
		Tags []quayTag `json:"tags"`
	}

	// quayTag is a single tag entry in a quay.io tag listing.
	quayTag struct {
		Name           string `json:"name"`
		ManifestDigest string `json:"manifest_digest"`
	}
)

// WithQuayHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithQuayHTTPClient(c *http.Client) QuayOption {
	return func(q *QuayClient) {
		q.httpClient = c
	}
}

// WithQuayBaseURL overrides the quay API base URL, primarily for test servers.
func WithQuayBaseURL(base string) QuayOption {
	return func(q *QuayClient) {
		q.baseURL = strings.TrimRight(base, "/")
	}
}

// NewQuayClient creates a QuayClient with sensible defaults.
func NewQuayClient(opts ...QuayOption) *QuayClient {
	c := &QuayClient{
		httpClient: http.DefaultClient,
		baseURL:    "https://quay.io/api/v1",
		userAgent:  "kiln/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveTag returns the manifest digest for repository:tag.
// repository is the quay path without the host (e.g. "org/image").
func (c *QuayClient) ResolveTag(ctx context.Context, repository, tag string) (string, error) {
	// Query for the specific tag so a single response is expected.
	reqURL := fmt.Sprintf("%s/repository/%s/tag/?onlyActiveTags=true&specificTag=%s",
		c.baseURL, repository, url.QueryEscape(tag))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying quay: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return "", fmt.Errorf("%w: quay repository %s", ErrMissingCredentials, repository)
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s:%s", ErrTagNotFound, repository, tag)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("querying quay: unexpected status %d", resp.StatusCode)
	}

	var page quayTagPage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&page); err != nil {
		return "", fmt.Errorf("decoding quay response: %w", err)
	}

	for _, t := range page.Tags {
		if t.Name == tag && t.ManifestDigest != "" {
			return t.ManifestDigest, nil
		}
	}

	return "", fmt.Errorf("%w: %s:%s", ErrTagNotFound, repository, tag)
}
