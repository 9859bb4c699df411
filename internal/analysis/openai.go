package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIOptions configures the fallback analysis provider.
type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAIProvider serves analysis when the primary provider is unconfigured.
// Images travel as data URLs on the chat-completions vision surface.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type openAIChatRequest struct {
	Model          string              `json:"model"`
	Messages       []openAIChatMessage `json:"messages"`
	ResponseFormat *openAIFormat       `json:"response_format,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &OpenAIProvider{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  client,
	}
}

func (p *OpenAIProvider) Configured() bool {
	return p.apiKey != ""
}

func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) Analyze(ctx context.Context, req Request) (json.RawMessage, error) {
	if !p.Configured() {
		return nil, &ProviderError{Provider: "openai", Reason: ReasonNoProvider}
	}
	if len(req.Inputs) == 0 {
		return nil, &ProviderError{Provider: "openai", Reason: ReasonEmptyResult, Err: fmt.Errorf("no inputs")}
	}

	parts := []openAIContentPart{{Type: "text", Text: userPrompt(req.PromptVersion, len(req.Inputs), req.Transcript)}}
	for _, in := range req.Inputs {
		mime := in.MimeType
		if mime == "" {
			mime = "image/jpeg"
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(in.Data))
		parts = append(parts, openAIContentPart{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURL}})
	}

	payload := openAIChatRequest{
		Model:          p.model,
		ResponseFormat: &openAIFormat{Type: "json_object"},
		Messages: []openAIChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: parts},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, &ProviderError{Provider: "openai", Reason: ReasonNetwork, Err: fmt.Errorf("encode request: %w", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", &buf)
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Reason: ReasonNetwork, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Reason: ReasonNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &ProviderError{Provider: "openai", Reason: ReasonBadStatus,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))}
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProviderError{Provider: "openai", Reason: ReasonUnparsable, Err: err}
	}
	if len(out.Choices) == 0 {
		return nil, &ProviderError{Provider: "openai", Reason: ReasonEmptyResult}
	}
	return parseJSONPayload("openai", out.Choices[0].Message.Content)
}

var _ Provider = (*OpenAIProvider)(nil)
