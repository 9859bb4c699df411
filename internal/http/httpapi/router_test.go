package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"adscope/internal/http/handlers"
	"adscope/internal/infra"
	"adscope/internal/worker"
)

type stubInvoker struct{}

func (stubInvoker) RunOnce(ctx context.Context) (*worker.Summary, error) {
	return &worker.Summary{Success: true, Details: []worker.JobDetail{}}, nil
}

func TestRouterWorkerEndpointAuth(t *testing.T) {
	cfg := &infra.Config{AppEnv: "production", WorkerSecret: "s3cret", PromptVersion: "v4"}
	app := handlers.NewApp(cfg, zerolog.New(io.Discard), stubInvoker{}, nil)
	router := NewRouter(app)

	req := httptest.NewRequest(http.MethodPost, "/worker", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated trigger: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/worker", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated trigger: status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	// Health stays open.
	req = httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status = %d, want 200", rec.Code)
	}
}
