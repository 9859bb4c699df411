package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"adscope/internal/domain"
	"adscope/internal/infra"
)

// Options configures the embedding client.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client produces vector embeddings for digest salient text. Vectors from the
// API are expected unit-norm; Embed re-normalizes and logs when they are not,
// since downstream anomaly scoring assumes dot product == cosine similarity.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "text-embedding-3-small"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		baseURL:    baseURL,
		httpClient: client,
		logger:     opts.Logger,
	}
}

// Configured reports whether the client has credentials to call out.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Embed returns the unit-norm embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("embedding client not configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty embedding input")
	}

	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding response carried no vector")
	}

	vec := domain.Embedding(parsed.Data[0].Embedding)
	if n := norm(vec); math.Abs(n-1) > 1e-6 {
		if c.logger != nil {
			c.logger.Warn().Float64("norm", n).Str("model", c.model).Msg("embedding not unit-norm, re-normalizing")
		}
		vec = normalize(vec, n)
	}
	return vec, nil
}

func norm(v domain.Embedding) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func normalize(v domain.Embedding, n float64) domain.Embedding {
	if n == 0 {
		return v
	}
	out := make(domain.Embedding, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}
