package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReply(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   DefaultChatModel,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		APIKey:            "test-key",
		BaseURL:           server.URL + "/v1",
		MaxRetries:        2,
		RetryDelay:        time.Millisecond,
		RequestsPerMinute: 600000,
	}, nil)
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(ClientConfig{}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestGenerateAnalysis(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultChatModel, body["model"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatReply("```json\n{\"issue\":\"Loose HDMI cable\",\"confidence_score\":0.9,\"recommended_steps\":[\"Reseat the cable\"]}\n```"))
	})

	analysis, err := client.GenerateAnalysis(context.Background(), "tv flickers", "television")
	require.NoError(t, err)
	assert.Equal(t, "Loose HDMI cable", analysis.Issue)
	require.Len(t, analysis.RecommendedSteps, 1)
	assert.Equal(t, 1, analysis.RecommendedSteps[0].StepNumber)
}

func TestGenerateAnalysis_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatReply(`{"issue":"X","confidence_score":0.6}`))
	})

	analysis, err := client.GenerateAnalysis(context.Background(), "something", "")
	require.NoError(t, err)
	assert.Equal(t, "X", analysis.Issue)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateAnalysis_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	})

	_, err := client.GenerateAnalysis(context.Background(), "something", "")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateAnalysis_MalformedReply(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatReply("Sorry, I cannot help with that."))
	})

	_, err := client.GenerateAnalysis(context.Background(), "something", "")
	assert.Error(t, err)
}

func TestTranscribe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, DefaultTranscriptionModel, r.FormValue("model"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"  my phone will not charge "}`))
	})

	text, err := client.Transcribe(context.Background(), []byte("RIFF....WAVE"), "clip.wav")
	require.NoError(t, err)
	assert.Equal(t, "my phone will not charge", text)

	_, err = client.Transcribe(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestReadImage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatReply(`{"extracted_text":"Error E-74","error_codes":["E-74"]}`))
	})

	got, err := client.ReadImage(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "")
	require.NoError(t, err)
	assert.Equal(t, "Error E-74", got.Text)
	assert.Equal(t, []string{"E-74"}, got.ErrorCodes)
}
