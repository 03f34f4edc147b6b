package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pharmaflow/pharmacy-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompletionClientWithoutKey(t *testing.T) {
	assert.Nil(t, NewCompletionClient(&config.ChatbotConfig{}))
}

func TestCompleteSuccess(t *testing.T) {
	var gotAuth, gotReferer string
	var gotReq completionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReferer = r.Header.Get("HTTP-Referer")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "Paracetamol is in stock."}},
			},
		})
	}))
	defer server.Close()

	client := NewCompletionClient(&config.ChatbotConfig{
		APIURL:  server.URL,
		APIKey:  "test-key",
		Referer: "https://pharmacy.test",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
	require.NotNil(t, client)

	reply, err := client.Complete(context.Background(), "system prompt", "is paracetamol in stock?")
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol is in stock.", reply)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "https://pharmacy.test", gotReferer)
	assert.Equal(t, "test-model", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
}

func TestCompleteShapeMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"unexpected": true})
	}))
	defer server.Close()

	client := NewCompletionClient(&config.ChatbotConfig{APIURL: server.URL, APIKey: "k", Model: "m"})

	_, err := client.Complete(context.Background(), "sys", "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no message content")
}

func TestCompleteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewCompletionClient(&config.ChatbotConfig{APIURL: server.URL, APIKey: "k", Model: "m"})

	_, err := client.Complete(context.Background(), "sys", "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
