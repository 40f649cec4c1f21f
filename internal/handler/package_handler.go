package handler

import (
	"net/http"

	"hostbot/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// PackageHandler serves the hosting plan catalogue.
type PackageHandler struct {
	service service.PackageService
	logger  zerolog.Logger
}

// NewPackageHandler creates a new package handler.
func NewPackageHandler(service service.PackageService, logger zerolog.Logger) *PackageHandler {
	return &PackageHandler{
		service: service,
		logger:  logger.With().Str("handler", "package").Logger(),
	}
}

// GetAll handles GET /api/packages requests.
func (h *PackageHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ListPackages())
}

// GetByKey handles GET /api/packages/{key} requests.
func (h *PackageHandler) GetByKey(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.service.GetPackage(chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}
