package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joss/gamepilot/internal/domain"
	"github.com/joss/gamepilot/internal/logging"
	"github.com/joss/gamepilot/pkg/llm"
)

const (
	googleAPIRoot = "https://generativelanguage.googleapis.com"

	// File API uploads are asynchronous; poll until the file is ACTIVE.
	googleFilePollInterval = 5 * time.Second
	googleFilePollMax      = 24 // two minutes at the default interval

	googleThinkingBudget = 4096
)

type Google struct {
	apiKey       string
	apiRoot      string
	client       HTTPClient
	log          *logging.Logger
	pollInterval time.Duration
}

func NewGoogle(apiKey, baseURL string) *Google {
	return NewGoogleWithClient(apiKey, baseURL, &http.Client{})
}

func NewGoogleWithClient(apiKey, baseURL string, client HTTPClient) *Google {
	apiRoot := googleAPIRoot
	if baseURL != "" {
		apiRoot = strings.TrimSuffix(baseURL, "/")
	}
	return &Google{
		apiKey:       apiKey,
		apiRoot:      apiRoot,
		client:       client,
		log:          logging.New("provider.google"),
		pollInterval: googleFilePollInterval,
	}
}

func (g *Google) ID() string   { return "google" }
func (g *Google) Name() string { return "Google" }

func (g *Google) Models() []domain.Model {
	return domain.Models("google")
}

type googleRequest struct {
	Contents          []googleContent  `json:"contents"`
	SystemInstruction *googleContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *googleGenConfig `json:"generationConfig,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text       string            `json:"text,omitempty"`
	Thought    bool              `json:"thought,omitempty"`
	InlineData *googleInlineData `json:"inlineData,omitempty"`
	FileData   *googleFileData   `json:"fileData,omitempty"`
}

type googleInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type googleFileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type googleGenConfig struct {
	MaxOutputTokens int                   `json:"maxOutputTokens,omitempty"`
	Temperature     *float64              `json:"temperature,omitempty"`
	TopP            *float64              `json:"topP,omitempty"`
	TopK            *int                  `json:"topK,omitempty"`
	Seed            *int                  `json:"seed,omitempty"`
	ThinkingConfig  *googleThinkingConfig `json:"thinkingConfig,omitempty"`
}

type googleThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *googleUsage `json:"usageMetadata,omitempty"`
}

type googleUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
	ThoughtsTokenCount   int `json:"thoughtsTokenCount,omitempty"`
}

func (g *Google) Generate(ctx context.Context, req *llm.GenerateRequest) (*domain.GenerateResult, error) {
	if err := req.Options.Validate(); err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Provider: g.ID(), Message: err.Error()}
	}

	system, rest := hoistSystem(req.Messages)

	var contents []googleContent
	for _, m := range rest {
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "model"
		}

		var parts []googlePart
		for _, p := range m.Parts {
			switch part := p.(type) {
			case domain.TextPart:
				parts = append(parts, googlePart{Text: part.Text})
			case domain.ImagePart:
				parts = append(parts, googlePart{
					InlineData: &googleInlineData{
						MimeType: part.MediaType,
						Data:     part.Base64,
					},
				})
			case domain.ImageRefPart:
				img, err := inlineImage(part)
				if err != nil {
					g.log.Warn("image_read_failed", map[string]interface{}{"path": part.Path}, err)
					continue
				}
				parts = append(parts, googlePart{
					InlineData: &googleInlineData{
						MimeType: img.MediaType,
						Data:     img.Base64,
					},
				})
			case domain.VideoRefPart:
				fd, err := g.uploadFile(ctx, part)
				if err != nil {
					g.log.Warn("video_upload_failed", map[string]interface{}{"path": part.Path}, err)
					continue
				}
				parts = append(parts, googlePart{FileData: fd})
			}
		}

		if len(parts) > 0 {
			contents = append(contents, googleContent{Role: role, Parts: parts})
		}
	}

	var systemContent *googleContent
	if system != "" {
		systemContent = &googleContent{Parts: []googlePart{{Text: system}}}
	}

	maxTokens := 1024
	if req.Options.MaxTokens != nil {
		maxTokens = *req.Options.MaxTokens
	}

	genConfig := &googleGenConfig{
		MaxOutputTokens: maxTokens,
		Temperature:     req.Options.Temperature,
		TopP:            req.Options.TopP,
		TopK:            req.Options.TopK,
		Seed:            req.Options.Seed,
	}

	if req.Options.EnableThinking {
		if !domain.SupportsThinking(req.Model) {
			g.log.Warn("thinking_unsupported", map[string]interface{}{"model": req.Model}, nil)
		} else {
			genConfig.ThinkingConfig = &googleThinkingConfig{ThinkingBudget: googleThinkingBudget}
		}
	}

	body := googleRequest{
		Contents:          contents,
		SystemInstruction: systemContent,
		GenerationConfig:  genConfig,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.apiRoot, req.Model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(g.ID(), resp.StatusCode, respBody)
	}

	var parsed googleResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var text, reasoning strings.Builder
	for _, candidate := range parsed.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text == "" {
				continue
			}
			if part.Thought {
				reasoning.WriteString(part.Text)
			} else {
				text.WriteString(part.Text)
			}
		}
	}

	result := &domain.GenerateResult{
		Text:          text.String(),
		ReasoningText: reasoning.String(),
		Elapsed:       time.Since(start),
		Raw:           respBody,
	}

	if parsed.UsageMetadata != nil {
		result.Usage = domain.TokenUsage{
			InputTokens:     parsed.UsageMetadata.PromptTokenCount,
			OutputTokens:    parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:     parsed.UsageMetadata.TotalTokenCount,
			ReasoningTokens: parsed.UsageMetadata.ThoughtsTokenCount,
		}
	}

	return result, nil
}

type googleFileStatus struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// uploadFile pushes a local video through the File API and waits for
// processing to finish.
func (g *Google) uploadFile(ctx context.Context, ref domain.VideoRefPart) (*googleFileData, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("read video %s: %w", ref.Path, err)
	}

	mimeType := ref.MediaType
	if mimeType == "" {
		mimeType = mediaTypeForPath(ref.Path)
	}

	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", g.apiRoot, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	httpReq.Header.Set("X-Goog-Upload-Protocol", "raw")
	httpReq.Header.Set("Content-Type", mimeType)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(g.ID(), resp.StatusCode, respBody)
	}

	var uploaded struct {
		File googleFileStatus `json:"file"`
	}
	if err := json.Unmarshal(respBody, &uploaded); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	status := uploaded.File
	for i := 0; status.State == "PROCESSING" || status.State == ""; i++ {
		if i >= googleFilePollMax {
			return nil, fmt.Errorf("file %s still processing after %d polls", status.Name, i)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.pollInterval):
		}
		status, err = g.fileStatus(ctx, status.Name)
		if err != nil {
			return nil, err
		}
	}

	if status.State != "ACTIVE" {
		msg := status.State
		if status.Error != nil {
			msg = status.Error.Message
		}
		return nil, fmt.Errorf("file %s not usable: %s", status.Name, msg)
	}

	return &googleFileData{MimeType: mimeType, FileURI: status.URI}, nil
}

func (g *Google) fileStatus(ctx context.Context, name string) (googleFileStatus, error) {
	var status googleFileStatus

	url := fmt.Sprintf("%s/v1beta/%s?key=%s", g.apiRoot, name, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return status, fmt.Errorf("create status request: %w", err)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return status, fmt.Errorf("file status: %w", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return status, fmt.Errorf("read status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return status, apiError(g.ID(), resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, &status); err != nil {
		return status, fmt.Errorf("decode status response: %w", err)
	}
	return status, nil
}

var _ llm.Provider = (*Google)(nil)
