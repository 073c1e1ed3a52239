// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuayResolveTag(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tags":[{"name":"40","manifest_digest":"sha256:f00d"}]}`))
	}))
	defer server.Close()

	client := NewQuayClient(WithQuayBaseURL(server.URL))
	digest, err := client.ResolveTag(context.Background(), "fedora/fedora", "40")

	require.NoError(t, err)
	assert.Equal(t, "sha256:f00d", digest)
	assert.Equal(t, "/repository/fedora/fedora/tag/", gotPath)
	assert.Contains(t, gotQuery, "specificTag=40")
	assert.Contains(t, gotQuery, "onlyActiveTags=true")
}

func TestQuayResolveTagIgnoresOtherTags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Quay may return sibling tags; only the exact name counts.
		_, _ = w.Write([]byte(`{"tags":[
			{"name":"40-beta","manifest_digest":"sha256:bad"},
			{"name":"40","manifest_digest":"sha256:good"}
		]}`))
	}))
	defer server.Close()

	client := NewQuayClient(WithQuayBaseURL(server.URL))
	digest, err := client.ResolveTag(context.Background(), "fedora/fedora", "40")

	require.NoError(t, err)
	assert.Equal(t, "sha256:good", digest)
}

func TestQuayResolveTagNotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "404 response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "not found", http.StatusNotFound)
			},
		},
		{
			name: "empty tag list",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"tags":[]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewQuayClient(WithQuayBaseURL(server.URL))
			_, err := client.ResolveTag(context.Background(), "fedora/fedora", "0.0.0-nope")

			assert.ErrorIs(t, err, ErrTagNotFound)
		})
	}
}

func TestQuayResolveTagPrivateRepo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewQuayClient(WithQuayBaseURL(server.URL))
	_, err := client.ResolveTag(context.Background(), "secret/image", "1.0.0")

	assert.ErrorIs(t, err, ErrMissingCredentials)
}
