package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/scanmarket-backend/pkg/config"
)

const maxCompletionTokens = 600

// Suggester is the vision model collaborator. It answers a prompt about a
// single image and returns the raw JSON text the model produced.
type Suggester interface {
	Complete(ctx context.Context, prompt, imageURL string) (string, error)
}

// OpenAIClient calls an OpenAI-compatible /chat/completions endpoint with one
// image part and a JSON object response format.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient builds a client from the AI config. baseURL should include
// the /v1 prefix.
func NewOpenAIClient(cfg config.AIConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.OpenAIBaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.OpenAIAPIKey),
		model:      strings.TrimSpace(cfg.OpenAIModel),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt, imageURL string) (string, error) {
	if c.model == "" {
		return "", errors.New("openai model required")
	}

	reqBody := oaiChatRequest{
		Model: c.model,
		Messages: []oaiMessage{{
			Role: "user",
			Content: []oaiContentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &oaiImageURL{URL: imageURL}},
			},
		}},
		MaxTokens:      maxCompletionTokens,
		ResponseFormat: &oaiResponseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("openai api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("openai api error: %s", resp.Status)
	}

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("openai decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", errors.New("empty response from openai api")
	}
	return chatResp.Choices[0].Message.Content, nil
}

type oaiImageURL struct {
	URL string `json:"url"`
}

type oaiContentPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *oaiImageURL `json:"image_url,omitempty"`
}

type oaiMessage struct {
	Role    string           `json:"role"`
	Content []oaiContentPart `json:"content"`
}

type oaiResponseFormat struct {
	Type string `json:"type"`
}

type oaiChatRequest struct {
	Model          string             `json:"model"`
	Messages       []oaiMessage       `json:"messages"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
	ResponseFormat *oaiResponseFormat `json:"response_format,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
