// Package service implements the newsletter subscription operation:
// resolve a contact and flip its membership in the configured newsletter
// group.
package service

import (
	"context"
	"log/slog"

	"provegapi/internal/crm"
	"provegapi/internal/platform/config"
	"provegapi/internal/platform/metrics"
	"provegapi/pkg/apierrors"
	"provegapi/pkg/requestcontext"
)

// Request is a newsletter subscription submission. When ContactID is
// zero, Email is mandatory and the contact is resolved from it.
type Request struct {
	ContactID  int    `json:"contact_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Newsletter bool   `json:"newsletter"`
}

// Service flips group membership for the configured newsletter group.
type Service struct {
	cfg      config.Config
	contacts crm.ContactResolver
	groups   crm.GroupService
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the newsletter service.
func New(cfg config.Config, contacts crm.ContactResolver, groups crm.GroupService, opts ...Option) *Service {
	s := &Service{cfg: cfg, contacts: contacts, groups: groups, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit resolves the contact and sets its newsletter group status to
// Added or Removed. The group status call is idempotent: repeated
// submissions with the same flag converge to the same state.
func (s *Service) Submit(ctx context.Context, req Request) (*crm.GroupContact, error) {
	if s.cfg.LoggingEnabled {
		s.logger.DebugContext(ctx, "ProvegNewsletterSubscription.submit",
			"request_id", requestcontext.RequestID(ctx),
			"contact_id", req.ContactID,
			"email", req.Email,
			"newsletter", req.Newsletter,
		)
	}

	groupContact, err := s.submit(ctx, req)
	s.metrics.NewsletterOutcome(err == nil)
	if err != nil && s.cfg.LoggingEnabled {
		s.logger.DebugContext(ctx, "ProvegNewsletterSubscription.submit: error caught",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	return groupContact, err
}

// Subscribe adds an already-resolved contact to the newsletter group. The
// donation operation uses this for its auxiliary provisioning step.
func (s *Service) Subscribe(ctx context.Context, contactID int) (*crm.GroupContact, error) {
	return s.Submit(ctx, Request{ContactID: contactID, Newsletter: true})
}

func (s *Service) submit(ctx context.Context, req Request) (*crm.GroupContact, error) {
	contactID := req.ContactID
	if contactID == 0 {
		if req.Email == "" {
			return nil, apierrors.New(apierrors.CodeMandatoryMissing, "Mandatory key(s) missing from params array: email").
				WithExtra("fields", []string{"email"}).
				WithExtra("entity", "ProvegNewsletterSubscription").
				WithExtra("action", "submit")
		}
		id, err := s.contacts.GetOrCreateContact(ctx, "Individual", crm.ContactData{Email: req.Email})
		if err != nil {
			return nil, apierrors.Wrap(err, apierrors.CodeInternal, "failed to resolve contact")
		}
		if id == 0 {
			return nil, apierrors.New(apierrors.CodeInvalidFormat, "Individual contact could not be found or created.")
		}
		contactID = id
	}

	status := crm.GroupStatusRemoved
	if req.Newsletter {
		status = crm.GroupStatusAdded
	}

	groupID := s.cfg.NewsletterGroupID
	if groupID == 0 {
		groupID = 1000
	}
	groupContact, err := s.groups.SetGroupStatus(ctx, groupID, contactID, status)
	if err != nil {
		return nil, apierrors.Wrap(err, apierrors.CodeInternal, "failed to update newsletter group membership")
	}
	return groupContact, nil
}
