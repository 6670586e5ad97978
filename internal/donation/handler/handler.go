// Package handler exposes the donation submission endpoint. It owns wire
// decoding and mandatory-parameter enforcement; all domain behavior lives
// in the service.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"provegapi/internal/donation/models"
	"provegapi/pkg/apierrors"
	"provegapi/pkg/platform/httputil"
)

const entity = "ProvegDonation"

// Submitter runs the donation pipeline.
type Submitter interface {
	Submit(ctx context.Context, req models.SubmissionRequest) (*models.SubmissionResult, error)
}

type Handler struct {
	service Submitter
	logger  *slog.Logger
}

func NewHandler(service Submitter, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/submit", h.submit)
	return r
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, apierrors.New(apierrors.CodeInvalidFormat, "Could not read request body."))
		return
	}

	var req submitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		if apierrors.HasCode(err, apierrors.CodeInvalidFormat) {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteError(w, apierrors.New(apierrors.CodeInvalidFormat, "Could not parse request body."))
		return
	}
	if missing := req.missingFields(); len(missing) > 0 {
		httputil.WriteError(w, mandatoryMissing(entity, missing))
		return
	}

	result, err := h.service.Submit(r.Context(), req.toModel())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// The success envelope echoes the caller's request verbatim.
	var echo map[string]any
	_ = json.Unmarshal(body, &echo)
	httputil.WriteSuccess(w, result.Values, result.Extra, echo)
}
