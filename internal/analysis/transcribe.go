package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TranscriberOptions configures the speech-to-text client.
type TranscriberOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Transcriber turns an extracted audio track into text via the OpenAI audio
// transcription endpoint. Callers treat failures as non-fatal: the job simply
// proceeds without a transcript.
type Transcriber struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewTranscriber(opts TranscriberOptions) *Transcriber {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "whisper-1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &Transcriber{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  client,
	}
}

// Configured reports whether transcription can be attempted at all.
func (t *Transcriber) Configured() bool {
	return t.apiKey != ""
}

// Transcribe uploads the audio file and returns the recognized text.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if !t.Configured() {
		return "", &ProviderError{Provider: "transcribe", Reason: ReasonNoProvider}
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy audio: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", &ProviderError{Provider: "transcribe", Reason: ReasonNetwork, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: "transcribe", Reason: ReasonNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &ProviderError{Provider: "transcribe", Reason: ReasonBadStatus,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))}
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ProviderError{Provider: "transcribe", Reason: ReasonUnparsable, Err: err}
	}
	return strings.TrimSpace(out.Text), nil
}
