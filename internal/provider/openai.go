package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joss/gamepilot/internal/domain"
	"github.com/joss/gamepilot/internal/logging"
	"github.com/joss/gamepilot/internal/tokens"
	"github.com/joss/gamepilot/pkg/llm"
)

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

type OpenAI struct {
	id      string
	name    string
	apiKey  string
	baseURL string
	client  HTTPClient
	log     *logging.Logger
}

func NewOpenAI(apiKey, baseURLOverride string) *OpenAI {
	return NewOpenAIWithClient(apiKey, baseURLOverride, &http.Client{})
}

func NewOpenAIWithClient(apiKey, baseURLOverride string, client HTTPClient) *OpenAI {
	baseURL := baseURLOverride
	if baseURL == "" {
		baseURL = openaiAPIURL
	} else {
		baseURL = normalizeChatURL(baseURL)
	}
	return &OpenAI{
		id:      "openai",
		name:    "OpenAI",
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
		log:     logging.New("provider.openai"),
	}
}

// NewOpenAICompatible targets an OpenAI-compatible gateway under a
// different provider identity (Together, xAI, local servers).
func NewOpenAICompatible(id, name, apiKey, baseURL string) *OpenAI {
	return NewOpenAICompatibleWithClient(id, name, apiKey, baseURL, &http.Client{})
}

func NewOpenAICompatibleWithClient(id, name, apiKey, baseURL string, client HTTPClient) *OpenAI {
	return &OpenAI{
		id:      id,
		name:    name,
		apiKey:  apiKey,
		baseURL: normalizeChatURL(baseURL),
		client:  client,
		log:     logging.New("provider." + id),
	}
}

// normalizeChatURL accepts a bare host, a /v1 root, or a full endpoint
// and returns the full chat completions URL.
func normalizeChatURL(baseURL string) string {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	if strings.HasSuffix(baseURL, "/v1") {
		return baseURL + "/chat/completions"
	}
	return baseURL + "/v1/chat/completions"
}

// reasoningModel reports whether the model manages its own reasoning
// budget and rejects sampling parameters.
func reasoningModel(model string) bool {
	return strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "gpt-5")
}

func (o *OpenAI) ID() string   { return o.id }
func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Models() []domain.Model {
	return domain.Models(o.id)
}

type openaiRequest struct {
	Model               string          `json:"model"`
	Messages            []openaiMessage `json:"messages"`
	MaxTokens           int             `json:"max_tokens,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	Temperature         *float64        `json:"temperature,omitempty"`
	TopP                *float64        `json:"top_p,omitempty"`
	Seed                *int            `json:"seed,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openaiContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"` // "auto", "low", "high"
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openaiUsage `json:"usage,omitempty"`
}

type openaiUsage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	TotalTokens             int `json:"total_tokens"`
	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details,omitempty"`
}

func (o *OpenAI) Generate(ctx context.Context, req *llm.GenerateRequest) (*domain.GenerateResult, error) {
	if err := req.Options.Validate(); err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Provider: o.id, Message: err.Error()}
	}

	msgs := make([]openaiMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg := openaiMessage{Role: string(m.Role)}
		var contentParts []openaiContentPart
		hasImage := false

		for _, p := range m.Parts {
			switch part := p.(type) {
			case domain.TextPart:
				contentParts = append(contentParts, openaiContentPart{
					Type: "text",
					Text: part.Text,
				})
			case domain.ImagePart:
				hasImage = true
				contentParts = append(contentParts, openaiContentPart{
					Type: "image_url",
					ImageURL: &openaiImageURL{
						URL:    "data:" + part.MediaType + ";base64," + part.Base64,
						Detail: "auto",
					},
				})
			case domain.ImageRefPart:
				img, err := inlineImage(part)
				if err != nil {
					o.log.Warn("image_read_failed", map[string]interface{}{"path": part.Path}, err)
					continue
				}
				hasImage = true
				contentParts = append(contentParts, openaiContentPart{
					Type: "image_url",
					ImageURL: &openaiImageURL{
						URL:    "data:" + img.MediaType + ";base64," + img.Base64,
						Detail: "auto",
					},
				})
			case domain.VideoRefPart:
				o.log.Warn("video_unsupported", map[string]interface{}{"path": part.Path}, nil)
			}
		}

		// Use array format when there are images, string when just text
		if hasImage || len(contentParts) > 1 {
			msg.Content = contentParts
		} else if len(contentParts) == 1 {
			msg.Content = contentParts[0].Text
		}

		if msg.Content != nil {
			msgs = append(msgs, msg)
		}
	}

	body := openaiRequest{
		Model:    req.Model,
		Messages: msgs,
		Seed:     req.Options.Seed,
	}

	maxTokens := 1024
	if req.Options.MaxTokens != nil {
		maxTokens = *req.Options.MaxTokens
	}

	// Reasoning models take max_completion_tokens and fix their own
	// sampling parameters.
	if reasoningModel(req.Model) {
		body.MaxCompletionTokens = maxTokens
	} else {
		body.MaxTokens = maxTokens
		body.Temperature = req.Options.Temperature
		body.TopP = req.Options.TopP
	}

	if req.Options.EnableThinking && !domain.SupportsThinking(req.Model) {
		o.log.Warn("thinking_unsupported", map[string]interface{}{"model": req.Model}, nil)
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	start := time.Now()
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(o.id, resp.StatusCode, respBody)
	}

	var parsed openaiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := &domain.GenerateResult{
		Elapsed: time.Since(start),
		Raw:     respBody,
	}

	if len(parsed.Choices) > 0 {
		result.Text = parsed.Choices[0].Message.Content
		result.ReasoningText = parsed.Choices[0].Message.ReasoningContent
	}

	if parsed.Usage != nil {
		result.Usage = domain.TokenUsage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		}
		if parsed.Usage.CompletionTokensDetails != nil {
			result.Usage.ReasoningTokens = parsed.Usage.CompletionTokensDetails.ReasoningTokens
		}
	}

	// Gateways that surface reasoning text often bill it without
	// reporting a count. Estimate and fold it into the total.
	if result.ReasoningText != "" && result.Usage.ReasoningTokens == 0 {
		est := tokens.Estimate(result.ReasoningText, req.Model)
		result.Usage.ReasoningTokens = est
		result.Usage.TotalTokens += est
	}

	return result, nil
}

var _ llm.Provider = (*OpenAI)(nil)
