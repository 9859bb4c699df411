package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"adscope/internal/domain"
	"adscope/internal/infra"
	"adscope/internal/worker"
)

// WorkerInvoker runs one worker loop invocation. *worker.Runner satisfies it;
// handler tests substitute a fake.
type WorkerInvoker interface {
	RunOnce(ctx context.Context) (*worker.Summary, error)
}

// JobStore is the ingest-side view of the job table.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
}

// App is the handler container; the router mounts its methods.
type App struct {
	Cfg    *infra.Config
	Logger infra.Logger
	Worker WorkerInvoker
	Jobs   JobStore
}

func NewApp(cfg *infra.Config, logger infra.Logger, w WorkerInvoker, jobs JobStore) *App {
	return &App{Cfg: cfg, Logger: logger, Worker: w, Jobs: jobs}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"success": false,
		"error":   errCode,
		"message": message,
	})
}
