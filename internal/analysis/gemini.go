package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"adscope/internal/infra"
)

// GeminiOptions controls how the Gemini provider is configured.
type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	DeepModel  string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// GeminiProvider is the primary analysis provider. The system prompt rides as
// systemInstruction so the vendor's prefix caching applies across requests.
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	model      string
	deepModel  string
	httpClient *http.Client
	logger     *infra.Logger
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiGenerateContentRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewGeminiProvider constructs the provider. Callers may provide a nil HTTP
// client; a reusable one with a sensible timeout is created.
func NewGeminiProvider(opts GeminiOptions) *GeminiProvider {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	deepModel := opts.DeepModel
	if deepModel == "" {
		deepModel = "gemini-2.5-pro"
	}
	return &GeminiProvider{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		deepModel:  deepModel,
		httpClient: client,
		logger:     opts.Logger,
	}
}

// Configured reports whether the provider has credentials to call out.
func (p *GeminiProvider) Configured() bool {
	return p.apiKey != ""
}

// Model returns the standard-tier model identifier (the cache key component).
func (p *GeminiProvider) Model() string {
	return p.model
}

func (p *GeminiProvider) modelFor(tier Tier) string {
	if tier == TierDeep {
		return p.deepModel
	}
	return p.model
}

// Analyze sends frames plus the versioned instruction set and returns the
// parsed JSON digest payload.
func (p *GeminiProvider) Analyze(ctx context.Context, req Request) (json.RawMessage, error) {
	if !p.Configured() {
		return nil, &ProviderError{Provider: "gemini", Reason: ReasonNoProvider}
	}
	if len(req.Inputs) == 0 {
		return nil, &ProviderError{Provider: "gemini", Reason: ReasonEmptyResult, Err: fmt.Errorf("no inputs")}
	}

	parts := make([]geminiPart, 0, len(req.Inputs)+1)
	parts = append(parts, geminiPart{Text: userPrompt(req.PromptVersion, len(req.Inputs), req.Transcript)})
	for _, in := range req.Inputs {
		mime := in.MimeType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(in.Data),
		}})
	}

	payload := geminiGenerateContentRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig:  &geminiGenerationConfig{ResponseMimeType: "application/json"},
	}

	model := p.modelFor(req.Tier)
	var response geminiGenerateContentResponse
	if err := p.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(model)), payload, &response); err != nil {
		return nil, err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if strings.TrimSpace(part.Text) == "" {
				continue
			}
			return parseJSONPayload("gemini", part.Text)
		}
	}
	return nil, &ProviderError{Provider: "gemini", Reason: ReasonEmptyResult}
}

func (p *GeminiProvider) invoke(ctx context.Context, path string, payload any, out any) error {
	endpoint := p.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return &ProviderError{Provider: "gemini", Reason: ReasonNetwork, Err: fmt.Errorf("marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &ProviderError{Provider: "gemini", Reason: ReasonNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	q := req.URL.Query()
	q.Set("key", p.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Provider: "gemini", Reason: ReasonNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return &ProviderError{Provider: "gemini", Reason: ReasonBadStatus,
				Err: fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error.Message)}
		}
		data, _ := io.ReadAll(resp.Body)
		return &ProviderError{Provider: "gemini", Reason: ReasonBadStatus,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Provider: "gemini", Reason: ReasonUnparsable, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

var _ Provider = (*GeminiProvider)(nil)
