package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/smartfix/internal/models"
)

func newTestClient(t *testing.T, results int, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{APIKey: "serp-key", Endpoint: server.URL, Results: results}, nil)
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestSearchWeb(t *testing.T) {
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "google", q.Get("engine"))
		assert.Equal(t, "how to fix wifi drops troubleshooting solution", q.Get("q"))
		assert.Equal(t, "2", q.Get("num"))
		assert.Equal(t, "serp-key", q.Get("api_key"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"organic_results":[
			{"title":"A","snippet":"first","link":"https://a.example"},
			{"title":"B","snippet":"second","link":"https://b.example"},
			{"title":"C","snippet":"third","link":"https://c.example"}
		]}`)
	})

	results, err := client.SearchWeb(context.Background(), " wifi drops ")
	require.NoError(t, err)
	assert.Equal(t, []models.WebResult{
		{Title: "A", Snippet: "first", URL: "https://a.example"},
		{Title: "B", Snippet: "second", URL: "https://b.example"},
	}, results)
}

func TestSearchWeb_EmptyQuery(t *testing.T) {
	client := newTestClient(t, 5, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	results, err := client.SearchWeb(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchWeb_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http status", http.StatusUnauthorized, `{}`, "status 401"},
		{"api error", http.StatusOK, `{"error":"Invalid API key"}`, "Invalid API key"},
		{"malformed", http.StatusOK, `not json`, "malformed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, 5, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := client.SearchWeb(context.Background(), "printer jam")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSearchWeb_ContextCancelled(t *testing.T) {
	client := newTestClient(t, 5, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.SearchWeb(ctx, "printer jam")
	assert.Error(t, err)
}
