package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"adscope/internal/domain"
)

type createAdRequest struct {
	MediaURL      string `json:"media_url"`
	MediaKind     string `json:"media_kind"`
	PromptVersion string `json:"prompt_version"`
	Brand         string `json:"brand"`
	UserID        string `json:"user_id"`
}

// AdsCreate enqueues an ad for analysis. The job starts queued and is picked
// up by the next worker invocation.
func (a *App) AdsCreate(w http.ResponseWriter, r *http.Request) {
	var req createAdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	parsed, err := url.Parse(strings.TrimSpace(req.MediaURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "media_url must be an http(s) URL")
		return
	}

	kind := domain.MediaKind(strings.ToLower(strings.TrimSpace(req.MediaKind)))
	if kind != domain.MediaKindImage && kind != domain.MediaKindVideo {
		a.error(w, http.StatusBadRequest, "bad_request", "media_kind must be image or video")
		return
	}

	promptVersion := strings.TrimSpace(req.PromptVersion)
	if promptVersion == "" {
		promptVersion = a.Cfg.PromptVersion
	}

	job := &domain.Job{
		ID:            uuid.NewString(),
		UserID:        strings.TrimSpace(req.UserID),
		MediaURL:      parsed.String(),
		MediaKind:     kind,
		PromptVersion: promptVersion,
		Status:        domain.JobStatusQueued,
		Brand:         strings.TrimSpace(req.Brand),
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Msg("ads: enqueue failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to enqueue ad")
		return
	}

	a.json(w, http.StatusCreated, map[string]any{
		"id":     job.ID,
		"status": job.Status,
	})
}

// AdsGet returns one job with its digest, if analysis has produced one.
func (a *App) AdsGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	job, err := a.Jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "ad not found")
			return
		}
		a.Logger.Error().Err(err).Str("id", id).Msg("ads: lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load ad")
		return
	}

	resp := map[string]any{
		"id":             job.ID,
		"media_url":      job.MediaURL,
		"media_kind":     job.MediaKind,
		"prompt_version": job.PromptVersion,
		"status":         job.Status,
		"brand":          job.Brand,
		"created_at":     job.CreatedAt,
		"updated_at":     job.UpdatedAt,
	}
	if job.MediaHash != "" {
		resp["media_hash"] = job.MediaHash
	}
	if len(job.Digest) > 0 {
		resp["digest"] = json.RawMessage(job.Digest)
	}
	a.json(w, http.StatusOK, resp)
}
