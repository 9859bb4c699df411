package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"adscope/internal/http/handlers"
	appmw "adscope/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()
	r.Use(
		appmw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		appmw.Logger(app.Logger),
	)
	if len(app.Cfg.CORSAllowedOrigins) > 0 {
		r.Use(appmw.CORS(app.Cfg.CORSAllowedOrigins))
	}

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(appmw.WorkerAuth(appmw.WorkerAuthOptions{
			OverrideToken:        app.Cfg.WorkerOverrideToken,
			Secret:               app.Cfg.WorkerSecret,
			PushQueueSecret:      app.Cfg.PushQueueSecret,
			TrustSchedulerHeader: app.Cfg.AppEnv == "production",
		}))
		r.Post("/worker", app.TriggerWorker)
	})

	r.Route("/v1/ads", func(r chi.Router) {
		r.Use(appmw.RateLimit(60, time.Minute))
		r.Post("/", app.AdsCreate)
		r.Get("/{id}", app.AdsGet)
	})

	return r
}
