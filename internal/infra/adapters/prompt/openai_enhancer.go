package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"son1k-dispatch/internal/config"
	"son1k-dispatch/internal/domain/ports/adapter"
)

var _ adapter.PromptEnhancer = (*OpenAIEnhancer)(nil)

// OpenAIEnhancer generates lyrics from a style prompt via a Chat Completions
// compatible endpoint.
type OpenAIEnhancer struct {
	apiKey string
	base   string
	model  string
	client *http.Client
}

func NewOpenAIEnhancer(cfg *config.EnhancerConfig) (*OpenAIEnhancer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("enhancer api key empty")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIEnhancer{
		apiKey: cfg.APIKey,
		base:   strings.TrimRight(base, "/"),
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (o *OpenAIEnhancer) EnhanceLyrics(ctx context.Context, stylePrompt, title string) (string, error) {
	user := "Write complete song lyrics in the style: " + stylePrompt
	if title != "" {
		user += "\nThe song is titled: " + title
	}
	reqBody := struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
	}{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a songwriter. Reply with lyrics only, no commentary."},
			{Role: "user", Content: user},
		},
	}

	b, _ := json.Marshal(reqBody)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/chat/completions", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("enhancer http %d", resp.StatusCode)
	}

	var payload struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	for _, c := range payload.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", errors.New("no choice content")
}
