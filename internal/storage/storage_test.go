// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T, endpoint string) *Storage {
	t.Helper()
	s, err := New(context.Background(), Config{
		Endpoint:  endpoint,
		Bucket:    "reels",
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)
	return s
}

func TestNew_DisabledWithoutBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrDisabled)

	var s *Storage
	_, err = s.PresignGet(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestPresignGet(t *testing.T) {
	s := newTestStorage(t, "http://localhost:9000")

	raw, err := s.PresignGet(context.Background(), "videos/42.mp4", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/reels/videos/42.mp4", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestPresignGet_PublicEndpoint(t *testing.T) {
	s, err := New(context.Background(), Config{
		Endpoint:       "http://minio:9000",
		PublicEndpoint: "https://media.example.com",
		Bucket:         "reels",
		AccessKey:      "test",
		SecretKey:      "test",
	})
	require.NoError(t, err)

	raw, err := s.PresignGet(context.Background(), "a.mp4", time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "media.example.com", u.Host)
}

func TestHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch r.URL.Path {
		case "/reels/videos/42.mp4":
			w.Header().Set("Content-Length", "1234")
			w.Header().Set("Content-Type", "video/mp4")
			w.Header().Set("ETag", `"abc"`)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := newTestStorage(t, srv.URL)
	obj, err := s.Head(context.Background(), "videos/42.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), obj.Size)
	assert.Equal(t, "video/mp4", obj.ContentType)

	_, err = s.Head(context.Background(), "videos/missing.mp4")
	assert.ErrorIs(t, err, ErrNotFound)
}
