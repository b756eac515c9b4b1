package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scanmarket-backend/pkg/config"
)

func TestOpenAIClientSendsVisionRequest(t *testing.T) {
	var got oaiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"title\":\"mouse\"}"}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(config.AIConfig{
		OpenAIAPIKey:  "sk-test",
		OpenAIBaseURL: srv.URL + "/v1/",
		OpenAIModel:   "gpt-4o-mini",
		Timeout:       time.Second,
	})
	out, err := client.Complete(context.Background(), "describe", "https://cdn.example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, `{"title":"mouse"}`, out)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 1)
	parts := got.Messages[0].Content
	require.Len(t, parts, 2)
	assert.Equal(t, "describe", parts[0].Text)
	require.NotNil(t, parts[1].ImageURL)
	assert.Equal(t, "https://cdn.example.com/a.png", parts[1].ImageURL.URL)
}

func TestOpenAIClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api message", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, "openai api error: bad key"},
		{"bare status", http.StatusBadGateway, `oops`, "openai api error: 502 Bad Gateway"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "empty response from openai api"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewOpenAIClient(config.AIConfig{OpenAIAPIKey: "k", OpenAIBaseURL: srv.URL, OpenAIModel: "m"})
			_, err := client.Complete(context.Background(), "p", "u")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOpenAIClientRequiresModel(t *testing.T) {
	client := NewOpenAIClient(config.AIConfig{OpenAIAPIKey: "k", OpenAIBaseURL: "http://127.0.0.1:0"})
	_, err := client.Complete(context.Background(), "p", "u")
	require.Error(t, err)
}
