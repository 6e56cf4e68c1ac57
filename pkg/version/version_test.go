package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		w.Write([]byte(`{"tag_name":"v1.4.0","name":"ai-chat 1.4.0"}`))
	}))
	defer srv.Close()

	tag, err := latestRelease(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "v1.4.0", tag)
}

func TestLatestReleaseStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := latestRelease(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestLatestReleaseMissingTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"untagged"}`))
	}))
	defer srv.Close()

	_, err := latestRelease(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
}

func TestIsNewer(t *testing.T) {
	assert.True(t, IsNewer("v1.2.0", "v1.1.9"))
	assert.True(t, IsNewer("1.2.0", "1.1.9")) // bare versions are canonicalized
	assert.False(t, IsNewer("v1.1.9", "v1.2.0"))
	assert.False(t, IsNewer("v1.2.0", "v1.2.0"))
	assert.False(t, IsNewer("v1.2.0", "dev"))
	assert.False(t, IsNewer("not-a-version", "v1.0.0"))
}
