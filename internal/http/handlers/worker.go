package handlers

import (
	"errors"
	"net/http"

	"adscope/internal/domain"
)

// TriggerWorker starts one worker loop invocation and reports the batch
// summary. The caller only ever sees the summary; per-job failures live in
// each job's persisted digest.
func (a *App) TriggerWorker(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Worker.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrThrottled) {
			a.error(w, http.StatusTooManyRequests, "throttled", "another invocation is already running")
			return
		}
		a.Logger.Error().Err(err).Msg("worker invocation failed")
		a.error(w, http.StatusInternalServerError, "internal", "worker invocation failed")
		return
	}
	a.json(w, http.StatusOK, summary)
}
