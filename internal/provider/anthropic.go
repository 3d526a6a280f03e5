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

const (
	anthropicAPIURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"

	// Token budget for extended thinking. max_tokens must exceed it.
	anthropicThinkingBudget = 4096
)

type Anthropic struct {
	apiKey  string
	baseURL string
	client  HTTPClient
	log     *logging.Logger
}

func NewAnthropic(apiKey, baseURL string) *Anthropic {
	return NewAnthropicWithClient(apiKey, baseURL, &http.Client{})
}

func NewAnthropicWithClient(apiKey, baseURL string, client HTTPClient) *Anthropic {
	if baseURL == "" {
		baseURL = anthropicAPIURL
	} else {
		baseURL = strings.TrimSuffix(baseURL, "/")
		if !strings.HasSuffix(baseURL, "/messages") {
			baseURL = baseURL + "/messages"
		}
	}
	return &Anthropic{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
		log:     logging.New("provider.anthropic"),
	}
}

func (a *Anthropic) ID() string   { return "anthropic" }
func (a *Anthropic) Name() string { return "Anthropic" }

func (a *Anthropic) Models() []domain.Model {
	return domain.Models("anthropic")
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      []systemContent    `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Stream      bool               `json:"stream"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	TopK        *int               `json:"top_k,omitempty"`
	Thinking    *thinkingConfig    `json:"thinking,omitempty"`
}

type thinkingConfig struct {
	Type         string `json:"type"`          // "enabled"
	BudgetTokens int    `json:"budget_tokens"` // max tokens for thinking
}

type systemContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`       // "base64"
	MediaType string `json:"media_type"` // "image/png", "image/jpeg", etc
	Data      string `json:"data"`       // base64 encoded
}

type anthropicResponse struct {
	Content []struct {
		Type     string `json:"type"`
		Text     string `json:"text,omitempty"`
		Thinking string `json:"thinking,omitempty"`
	} `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (a *Anthropic) Generate(ctx context.Context, req *llm.GenerateRequest) (*domain.GenerateResult, error) {
	if err := req.Options.Validate(); err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Provider: a.ID(), Message: err.Error()}
	}

	system, rest := hoistSystem(req.Messages)

	msgs := make([]anthropicMessage, 0, len(rest))
	for _, m := range rest {
		var content []contentPart
		for _, p := range m.Parts {
			switch part := p.(type) {
			case domain.TextPart:
				content = append(content, contentPart{Type: "text", Text: part.Text})
			case domain.ImagePart:
				content = append(content, contentPart{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: part.MediaType,
						Data:      part.Base64,
					},
				})
			case domain.ImageRefPart:
				img, err := inlineImage(part)
				if err != nil {
					a.log.Warn("image_read_failed", map[string]interface{}{"path": part.Path}, err)
					continue
				}
				content = append(content, contentPart{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: img.MediaType,
						Data:      img.Base64,
					},
				})
			case domain.VideoRefPart:
				a.log.Warn("video_unsupported", map[string]interface{}{"path": part.Path}, nil)
			}
		}

		if len(content) > 0 {
			msgs = append(msgs, anthropicMessage{
				Role:    string(m.Role),
				Content: content,
			})
		}
	}

	maxTokens := 1024
	if req.Options.MaxTokens != nil {
		maxTokens = *req.Options.MaxTokens
	}

	var systemBlocks []systemContent
	if system != "" {
		systemBlocks = []systemContent{{Type: "text", Text: system}}
	}

	body := anthropicRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		System:    systemBlocks,
		Messages:  msgs,
		Stream:    false,
		TopK:      req.Options.TopK,
	}

	// The API rejects temperature and top_p together. Temperature wins.
	if req.Options.Temperature != nil {
		body.Temperature = req.Options.Temperature
	} else if req.Options.TopP != nil {
		body.TopP = req.Options.TopP
	}

	if req.Options.EnableThinking {
		if !domain.SupportsThinking(req.Model) {
			a.log.Warn("thinking_unsupported", map[string]interface{}{"model": req.Model}, nil)
		} else {
			body.Thinking = &thinkingConfig{
				Type:         "enabled",
				BudgetTokens: anthropicThinkingBudget,
			}
			// Thinking requires temperature 1 and max_tokens above the budget
			one := 1.0
			body.Temperature = &one
			body.TopP = nil
			if body.MaxTokens <= anthropicThinkingBudget {
				body.MaxTokens = anthropicThinkingBudget + maxTokens
			}
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(a.ID(), resp.StatusCode, respBody)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var text, reasoning strings.Builder
	for _, block := range parsed.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "thinking":
			reasoning.WriteString(block.Thinking)
		}
	}

	result := &domain.GenerateResult{
		Text:          text.String(),
		ReasoningText: reasoning.String(),
		Usage: domain.TokenUsage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
			TotalTokens:  parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
		Elapsed: time.Since(start),
		Raw:     respBody,
	}

	// Anthropic counts thinking inside output_tokens but does not break
	// it out; estimate so the caller can track reasoning spend.
	if result.ReasoningText != "" {
		result.Usage.ReasoningTokens = tokens.Estimate(result.ReasoningText, req.Model)
	}

	return result, nil
}

var _ llm.Provider = (*Anthropic)(nil)
