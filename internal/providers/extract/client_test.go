package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Extract(t *testing.T) {
	t.Run("direct stream", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/extract/movie/tt0133093", r.URL.Path)
			assert.Equal(t, "1080p", r.URL.Query().Get("quality"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"streamUrl":"https://cdn.example/movie.mkv","kind":"direct","qualityLabel":"1080p","sizeBytes":2147483648}`))
		}))
		defer server.Close()

		client := NewClient(ClientConfig{BaseURL: server.URL})
		resp, err := client.Extract(context.Background(), Request{
			MediaType:   "movie",
			ExternalID:  "tt0133093",
			QualityHint: "1080p",
		})

		require.NoError(t, err)
		assert.Equal(t, KindDirect, resp.Kind)
		assert.Equal(t, "https://cdn.example/movie.mkv", resp.StreamURL)
		assert.Equal(t, "1080p", resp.QualityLabel)
		assert.NotEmpty(t, resp.SizeLabel)
	})

	t.Run("manifest stream with episode params", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "2", r.URL.Query().Get("season"))
			assert.Equal(t, "5", r.URL.Query().Get("episode"))
			_, _ = w.Write([]byte(`{"streamUrl":"https://cdn.example/master.m3u8","kind":"manifest"}`))
		}))
		defer server.Close()

		client := NewClient(ClientConfig{BaseURL: server.URL})
		resp, err := client.Extract(context.Background(), Request{
			MediaType:  "series",
			ExternalID: "123",
			Season:     2,
			Episode:    5,
		})

		require.NoError(t, err)
		assert.Equal(t, KindManifest, resp.Kind)
	})

	t.Run("structured error detail", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":"dependency_unavailable","message":"no transcoder available","dependency":"ffmpeg"}}`))
		}))
		defer server.Close()

		client := NewClient(ClientConfig{BaseURL: server.URL})
		_, err := client.Extract(context.Background(), Request{MediaType: "movie", ExternalID: "x"})

		require.Error(t, err)
		var detail *ErrorDetail
		require.ErrorAs(t, err, &detail)
		assert.Equal(t, "dependency_unavailable", detail.Code)
		assert.Contains(t, detail.Error(), "ffmpeg")
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"no sources"}}`))
		}))
		defer server.Close()

		client := NewClient(ClientConfig{BaseURL: server.URL})
		_, err := client.Extract(context.Background(), Request{MediaType: "movie", ExternalID: "x"})

		var detail *ErrorDetail
		require.ErrorAs(t, err, &detail)
		assert.Equal(t, "not_found", detail.Code)
	})

	t.Run("empty stream URL is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"streamUrl":"","kind":"direct"}`))
		}))
		defer server.Close()

		client := NewClient(ClientConfig{BaseURL: server.URL})
		_, err := client.Extract(context.Background(), Request{MediaType: "movie", ExternalID: "x"})

		var detail *ErrorDetail
		require.ErrorAs(t, err, &detail)
		assert.Equal(t, "empty_response", detail.Code)
	})

	t.Run("unknown kind is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"streamUrl":"https://cdn.example/x","kind":"carrier-pigeon"}`))
		}))
		defer server.Close()

		client := NewClient(ClientConfig{BaseURL: server.URL})
		_, err := client.Extract(context.Background(), Request{MediaType: "movie", ExternalID: "x"})

		var detail *ErrorDetail
		require.ErrorAs(t, err, &detail)
		assert.Equal(t, "unknown_kind", detail.Code)
	})

	t.Run("timeout reported as error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		defer server.Close()

		client := NewClient(ClientConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
		_, err := client.Extract(context.Background(), Request{MediaType: "movie", ExternalID: "x"})
		assert.Error(t, err)
	})
}

func TestClient_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/health", r.URL.Path)
			_, _ = w.Write([]byte(`{"healthy":true}`))
		}))
		defer server.Close()

		client := NewClient(ClientConfig{BaseURL: server.URL})
		assert.NoError(t, client.HealthCheck(context.Background()))
	})

	t.Run("unhealthy with message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"healthy":false,"message":"debrid quota exceeded"}`))
		}))
		defer server.Close()

		client := NewClient(ClientConfig{BaseURL: server.URL})
		err := client.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "debrid quota exceeded")
	})
}
