package router

import (
	"encoding/json"
	"net/http"

	"hostbot/internal/handler"
	"hostbot/internal/middleware"
	"hostbot/internal/model"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Config holds the credentials enforced by the router.
type Config struct {
	APIKey        string
	WebhookSecret string
}

// New creates a new HTTP router with all routes and middleware configured.
func New(
	packageHandler *handler.PackageHandler,
	orderHandler *handler.OrderHandler,
	opsHandler *handler.OpsHandler,
	cfg Config,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// RequestID -> Recovery -> Logging -> CORS -> APIKeyAuth
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(cfg.APIKey, logger, "/health", "/webhook"))

	r.Get("/health", opsHandler.Health)

	r.With(middleware.WebhookSecret(cfg.WebhookSecret, logger)).
		Post("/webhook/messages", opsHandler.Webhook)

	r.Route("/api", func(r chi.Router) {
		r.Get("/packages", packageHandler.GetAll)
		r.Get("/packages/{key}", packageHandler.GetByKey)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderHandler.List)
			r.Post("/", orderHandler.Create)
			r.Get("/stats", orderHandler.Stats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", orderHandler.Get)
				r.Delete("/", orderHandler.Delete)
				r.Get("/history", orderHandler.History)
				r.Post("/transition", orderHandler.Transition)
				r.Post("/cancel", orderHandler.Cancel)
				r.Post("/provision", orderHandler.Provision)
				r.Post("/retry-provision", orderHandler.RetryProvision)
				r.Put("/server", orderHandler.SetServer)
				r.Post("/server/{action}", opsHandler.ServerAction)
				r.Put("/notes", orderHandler.UpdateNotes)
			})
		})

		r.Get("/provisioning/status", opsHandler.ProvisioningStatus)
		r.Post("/provisioning/test", opsHandler.TestConnection)

		r.Route("/admission/{sender}", func(r chi.Router) {
			r.Get("/", opsHandler.AdmissionStatus)
			r.Post("/unblock", opsHandler.Unblock)
			r.Post("/reset", opsHandler.ResetAdmission)
		})

		r.Post("/notifications/bulk", opsHandler.Bulk)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusNotFound, model.ErrCodeNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
	})

	return r
}

func writeStatus(w http.ResponseWriter, r *http.Request, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{
		Error:         code,
		Message:       http.StatusText(status),
		CorrelationID: chimw.GetReqID(r.Context()),
	})
}
