package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sujalbistaa/retroboard/internal/models"
)

const (
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultOpenAIImageModel = "gpt-image-1"
)

// OpenAI summarizes the board through the chat completions API.
type OpenAI struct {
	client  *http.Client
	apiKey  string
	model   string
	baseURL string
	topic   string
}

// NewOpenAI creates a chat-completions summarizer.
func NewOpenAI(apiKey, model, baseURL, topic string) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAI{
		client:  &http.Client{Timeout: 2 * time.Minute},
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		topic:   topic,
	}
}

func (o *OpenAI) Summarize(ctx context.Context, items []models.Item) (Analysis, error) {
	payload := map[string]any{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "user", "content": BuildPrompt(items, o.topic)},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0.3,
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, o.client, o.baseURL+"/v1/chat/completions", o.apiKey, payload, &result); err != nil {
		return Analysis{}, err
	}
	if len(result.Choices) == 0 {
		return Analysis{}, fmt.Errorf("openai: no choices returned")
	}

	raw := result.Choices[0].Message.Content
	a, err := ParseAnalysis(raw)
	if err != nil {
		return Analysis{}, fmt.Errorf("openai: %w (raw: %s)", err, truncate(raw, 300))
	}
	return a, nil
}

// OpenAIImages renders images through the image generation API.
type OpenAIImages struct {
	client  *http.Client
	apiKey  string
	model   string
	baseURL string
}

// NewOpenAIImages creates an image renderer.
func NewOpenAIImages(apiKey, model, baseURL string) *OpenAIImages {
	if model == "" {
		model = defaultOpenAIImageModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIImages{
		client:  &http.Client{Timeout: 3 * time.Minute},
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (o *OpenAIImages) RenderImage(ctx context.Context, prompt string) (*Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, nil
	}

	payload := map[string]any{
		"model":  o.model,
		"prompt": prompt,
		"n":      1,
		"size":   "1536x1024",
	}
	// dall-e models return URLs unless asked otherwise; gpt-image models only return base64.
	if strings.HasPrefix(o.model, "dall-e") {
		payload["response_format"] = "b64_json"
		payload["size"] = "1792x1024"
	}

	var result struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := postJSON(ctx, o.client, o.baseURL+"/v1/images/generations", o.apiKey, payload, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 || result.Data[0].B64JSON == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(result.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("openai: decode image: %w", err)
	}
	return &Image{Data: data, MIME: http.DetectContentType(data)}, nil
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode openai request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call openai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("openai status %d: %v", resp.StatusCode, errResp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode openai response: %w", err)
	}
	return nil
}
