// Package handler exposes the newsletter subscription endpoint.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"provegapi/internal/crm"
	"provegapi/internal/newsletter/service"
	"provegapi/pkg/apierrors"
	"provegapi/pkg/platform/httputil"
)

const entity = "ProvegNewsletterSubscription"

// Submitter flips newsletter group membership for a contact.
type Submitter interface {
	Submit(ctx context.Context, req service.Request) (*crm.GroupContact, error)
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

type submitRequest struct {
	ContactID  int                `json:"contact_id"`
	Email      string             `json:"email"`
	Newsletter *httputil.BoolFlag `json:"newsletter"`
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
	if req.Newsletter == nil {
		httputil.WriteError(w, apierrors.New(apierrors.CodeMandatoryMissing,
			"Mandatory key(s) missing from params array: newsletter").
			WithExtra("fields", []string{"newsletter"}).
			WithExtra("entity", entity).
			WithExtra("action", "submit"))
		return
	}

	groupContact, err := h.service.Submit(r.Context(), service.Request{
		ContactID:  req.ContactID,
		Email:      req.Email,
		Newsletter: bool(*req.Newsletter),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var echo map[string]any
	_ = json.Unmarshal(body, &echo)
	httputil.WriteSuccess(w, groupContact, nil, echo)
}
