package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestGeminiAnalyzeParsesFencedPayload(t *testing.T) {
	var captured geminiGenerateContentRequest
	provider := NewGeminiProvider(GeminiOptions{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(r.Body)
			if err := json.NewDecoder(bytes.NewReader(body)).Decode(&captured); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			return jsonResponse(200, `{"candidates":[{"content":{"parts":[{"text":"`+
				"```json\\n{\\\"classification\\\":{\\\"brand_guess\\\":\\\"Acme\\\"}}\\n```"+`"}]}}]}`), nil
		})},
	})

	raw, err := provider.Analyze(context.Background(), Request{
		Inputs:        []Input{{Data: []byte("img"), MimeType: "image/png"}},
		PromptVersion: "v4",
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("result not JSON: %v", err)
	}
	if captured.SystemInstruction == nil || len(captured.SystemInstruction.Parts) == 0 {
		t.Fatal("system instruction not sent")
	}
	if len(captured.Contents) != 1 || len(captured.Contents[0].Parts) != 2 {
		t.Fatalf("unexpected request shape: %+v", captured.Contents)
	}
	if captured.Contents[0].Parts[1].InlineData == nil {
		t.Fatal("image not sent as inline data")
	}
}

func TestGeminiAnalyzeUnconfigured(t *testing.T) {
	provider := NewGeminiProvider(GeminiOptions{})
	_, err := provider.Analyze(context.Background(), Request{Inputs: []Input{{Data: []byte("x")}}})
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Reason != ReasonNoProvider {
		t.Fatalf("err = %v, want no_provider", err)
	}
}

func TestGeminiAnalyzeSurfacesAPIError(t *testing.T) {
	provider := NewGeminiProvider(GeminiOptions{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(429, `{"error":{"code":429,"message":"quota exhausted"}}`), nil
		})},
	})
	_, err := provider.Analyze(context.Background(), Request{Inputs: []Input{{Data: []byte("x")}}})
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Reason != ReasonBadStatus {
		t.Fatalf("err = %v, want bad_status", err)
	}
	if !strings.Contains(pe.Error(), "quota exhausted") {
		t.Fatalf("error lost API message: %v", pe)
	}
}

func TestGeminiAnalyzeNetworkFailure(t *testing.T) {
	provider := NewGeminiProvider(GeminiOptions{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})},
	})
	_, err := provider.Analyze(context.Background(), Request{Inputs: []Input{{Data: []byte("x")}}})
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Reason != ReasonNetwork {
		t.Fatalf("err = %v, want network", err)
	}
}

func TestGeminiDeepTierSelectsDeepModel(t *testing.T) {
	var path string
	provider := NewGeminiProvider(GeminiOptions{
		APIKey:    "dummy",
		Model:     "gemini-2.5-flash",
		DeepModel: "gemini-2.5-pro",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			path = r.URL.Path
			return jsonResponse(200, `{"candidates":[{"content":{"parts":[{"text":"{\"a\":1}"}]}}]}`), nil
		})},
	})
	_, err := provider.Analyze(context.Background(), Request{
		Inputs: []Input{{Data: []byte("x")}},
		Tier:   TierDeep,
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if !strings.Contains(path, "gemini-2.5-pro") {
		t.Fatalf("request path %q does not use deep model", path)
	}
}

func TestOpenAIAnalyzeSendsDataURLs(t *testing.T) {
	var captured map[string]any
	provider := NewOpenAIProvider(OpenAIOptions{
		APIKey: "dummy",
		Model:  "gpt-4o",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if got := r.Header.Get("Authorization"); got != "Bearer dummy" {
				t.Fatalf("Authorization = %q", got)
			}
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &captured)
			return jsonResponse(200, `{"choices":[{"message":{"content":"{\"a\":1}"}}]}`), nil
		})},
	})

	_, err := provider.Analyze(context.Background(), Request{
		Inputs:        []Input{{Data: []byte("img"), MimeType: "image/png"}},
		PromptVersion: "v4",
	})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages length = %d, want 2", len(msgs))
	}
	user, _ := msgs[1].(map[string]any)
	parts, _ := user["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("content parts = %d, want text + image", len(parts))
	}
	img, _ := parts[1].(map[string]any)
	imageURL, _ := img["image_url"].(map[string]any)
	urlStr, _ := imageURL["url"].(string)
	if !strings.HasPrefix(urlStr, "data:image/png;base64,") {
		t.Fatalf("image url = %q, want data URL", urlStr)
	}
}

func TestOpenAIAnalyzeRejectsProse(t *testing.T) {
	provider := NewOpenAIProvider(OpenAIOptions{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(200, `{"choices":[{"message":{"content":"sorry, I cannot"}}]}`), nil
		})},
	})
	_, err := provider.Analyze(context.Background(), Request{Inputs: []Input{{Data: []byte("x")}}})
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Reason != ReasonUnparsable {
		t.Fatalf("err = %v, want unparsable_response", err)
	}
}
