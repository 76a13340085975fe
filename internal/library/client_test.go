package library

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/items/search", r.URL.Path)
		assert.Equal(t, "matrix", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(`{"results":[{"id":"tt0133093","title":"The Matrix","mediaType":"movie","year":1999}]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	items, err := client.Search(context.Background(), "matrix")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "The Matrix", items[0].Title)
}

func TestClient_GetSeasons(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/items/123/seasons", r.URL.Path)
		_, _ = w.Write([]byte(`{"seasons":[{"number":1,"episodes":[{"id":"e1","season":1,"episode":1,"title":"Pilot"},{"id":"e2","season":1,"episode":2,"title":"Two"}]}]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	seasons, err := client.GetSeasons(context.Background(), "123")
	require.NoError(t, err)
	require.Len(t, seasons, 1)
	assert.Len(t, seasons[0].Episodes, 2)
}

func TestClient_Progress(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		var saved Progress
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				require.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{}`))
			default:
				_ = json.NewEncoder(w).Encode(saved)
			}
		}))
		defer server.Close()

		client := NewClient(ClientConfig{BaseURL: server.URL})
		require.NoError(t, client.SaveProgress(context.Background(), Progress{
			ContentID:       "tt0133093",
			PositionSeconds: 754,
			DurationSeconds: 8160,
		}))

		progress, ok, err := client.GetProgress(context.Background(), "tt0133093")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 754, progress.PositionSeconds)
	})

	t.Run("missing progress is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"no progress for id"}`))
		}))
		defer server.Close()

		client := NewClient(ClientConfig{BaseURL: server.URL})
		_, ok, err := client.GetProgress(context.Background(), "unknown")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestClient_Watchlist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "tt0133093", body["id"])
			_, _ = w.Write([]byte(`{}`))
		default:
			_, _ = w.Write([]byte(`{"items":[{"id":"tt0133093","title":"The Matrix"}]}`))
		}
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	require.NoError(t, client.AddToWatchlist(context.Background(), "tt0133093"))

	items, err := client.GetWatchlist(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestFilterItems(t *testing.T) {
	items := []Item{
		{ID: "1", Title: "The Matrix"},
		{ID: "2", Title: "The Matrix Reloaded"},
		{ID: "3", Title: "Inception"},
	}

	t.Run("empty query returns everything", func(t *testing.T) {
		assert.Len(t, FilterItems(items, ""), 3)
	})

	t.Run("fuzzy query narrows results", func(t *testing.T) {
		filtered := FilterItems(items, "matrix")
		require.Len(t, filtered, 2)
		for _, item := range filtered {
			assert.Contains(t, item.Title, "Matrix")
		}
	})

	t.Run("no match yields empty slice", func(t *testing.T) {
		assert.Empty(t, FilterItems(items, "zzzz"))
	})
}
