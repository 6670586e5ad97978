// Package service implements the donation submission orchestration: the
// ordered sequence of validations, entity lookups and creations, payment
// instrument dispatch, optional membership and newsletter provisioning,
// and the rollback-and-audit compensating routine on failure.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"provegapi/internal/crm"
	"provegapi/internal/donation/models"
	"provegapi/internal/platform/config"
	"provegapi/internal/platform/metrics"
	"provegapi/pkg/apierrors"
	"provegapi/pkg/platform/httputil"
	"provegapi/pkg/requestcontext"
)

const (
	timestampLayout = "20060102150405"
	dateLayout      = "2006-01-02"

	failureActivitySubject = "Failed ProVeg API contribution processing"
	failureActivityType    = "provegapi_failed_contribution_processing"
)

// NewsletterSubscriber performs the auxiliary newsletter provisioning for
// an already-resolved contact.
type NewsletterSubscriber interface {
	Subscribe(ctx context.Context, contactID int) (*crm.GroupContact, error)
}

// Platform bundles the host-platform collaborators the orchestrator
// calls. All state mutation goes through these.
type Platform struct {
	Contacts      crm.ContactResolver
	Campaigns     crm.CampaignResolver
	Options       crm.OptionValueSource
	CustomFields  crm.CustomFieldResolver
	Mandates      crm.MandateService
	Contributions crm.ContributionService
	Memberships   crm.MembershipService
	Activities    crm.ActivityService
	Tx            crm.TransactionFrame
}

// Service is the donation submission orchestrator.
type Service struct {
	cfg        config.Config
	platform   Platform
	newsletter NewsletterSubscriber
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the orchestrator.
func New(cfg config.Config, platform Platform, newsletter NewsletterSubscriber, opts ...Option) *Service {
	s := &Service{cfg: cfg, platform: platform, newsletter: newsletter, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// submission carries the state the pipeline accumulates, so the
// compensating routine can reference the resolved contact and campaign
// even when a later step failed.
type submission struct {
	req                     *models.SubmissionRequest
	contactID               int
	campaignID              int
	annualAmount            float64
	recurringContributionID int
	extra                   map[string]any
}

// Submit runs the full pipeline. Errors are caught here, at the operation
// boundary only: the enclosing data transaction is force-rolled-back and
// a failure-audit activity is written in a best-effort secondary attempt
// whose own failure never masks the original error.
func (s *Service) Submit(ctx context.Context, req models.SubmissionRequest) (*models.SubmissionResult, error) {
	if s.cfg.LoggingEnabled {
		raw, _ := json.Marshal(req)
		s.logger.DebugContext(ctx, "ProvegDonation.submit",
			"request_id", requestcontext.RequestID(ctx),
			"params", string(raw),
		)
	}

	sub := &submission{req: &req, extra: map[string]any{}}
	result, err := s.run(ctx, sub)
	s.metrics.DonationOutcome(err == nil)
	if err != nil {
		apiErr := apierrors.From(err)
		if s.cfg.LoggingEnabled {
			s.logger.DebugContext(ctx, "ProvegDonation.submit: exception caught",
				"request_id", requestcontext.RequestID(ctx),
				"error", apiErr.Message,
			)
		}
		return nil, s.compensate(ctx, sub, apiErr)
	}
	return result, nil
}

func (s *Service) run(ctx context.Context, sub *submission) (*models.SubmissionResult, error) {
	req := sub.req

	// Campaign extraction: a campaign code without an explicit campaign id
	// is resolved through the host platform.
	if req.CampaignID == 0 && req.CampaignCode != "" {
		campaignID, err := s.platform.Campaigns.CampaignFromCode(ctx, req.CampaignCode)
		if err != nil {
			return nil, apierrors.Wrap(err, apierrors.CodeInvalidFormat, "Could not resolve the given campaign code.")
		}
		req.CampaignID = campaignID
	}
	sub.campaignID = req.CampaignID

	// Recurring collection is only possible via direct debit.
	if req.Frequency != 0 && req.PaymentInstrument != models.InstrumentDirectDebit {
		return nil, apierrors.New(apierrors.CodeInvalidFormat, "Recurring donations can only be submitted with SEPA.")
	}

	contactData, err := s.contactData(ctx, req)
	if err != nil {
		return nil, err
	}

	contactID, err := s.platform.Contacts.GetOrCreateContact(ctx, "Individual", contactData)
	if err != nil {
		return nil, apierrors.Wrap(err, apierrors.CodeInternal, "failed to resolve contact")
	}
	if contactID == 0 {
		return nil, apierrors.New(apierrors.CodeInvalidFormat, "Individual contact could not be found or created.")
	}
	sub.contactID = contactID

	draft := s.contributionDraft(ctx, sub)
	if s.cfg.LoggingEnabled {
		raw, _ := json.Marshal(draft)
		s.logger.DebugContext(ctx, "contribution draft",
			"request_id", requestcontext.RequestID(ctx),
			"draft", string(raw),
		)
	}

	values, err := s.dispatchPayment(ctx, sub, draft)
	if err != nil {
		return nil, err
	}

	if req.MembershipTypeID != 0 {
		if err := s.provisionMembership(ctx, sub); err != nil {
			return nil, err
		}
	}

	if req.Newsletter {
		groupContact, err := s.newsletter.Subscribe(ctx, sub.contactID)
		if err != nil {
			return nil, err
		}
		sub.extra["ProvegNewsletterSubscription"] = groupContact
	}

	return &models.SubmissionResult{Values: values, Extra: sub.extra}, nil
}

// contactData builds the identity record, resolving the optional gender
// code against the platform's gender option group.
func (s *Service) contactData(ctx context.Context, req *models.SubmissionRequest) (crm.ContactData, error) {
	data := crm.ContactData{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		StreetAddress: req.StreetAddress,
		City:          req.City,
		PostalCode:    req.PostalCode,
		Country:       req.Country,
	}
	if req.Gender == "" {
		return data, nil
	}

	genders, err := s.platform.Options.OptionValues(ctx, "gender")
	if err != nil {
		return data, apierrors.Wrap(err, apierrors.CodeInternal, "failed to load gender options")
	}
	var wanted string
	switch req.Gender {
	case "m":
		wanted = "Male"
	case "f":
		wanted = "Female"
	default:
		// This error has always carried an empty code; callers match on
		// the message.
		return data, apierrors.New(apierrors.CodeNone, "Could not determine option value from given gender.")
	}
	for value, name := range genders {
		if name == wanted {
			data.GenderID = value
			break
		}
	}
	return data, nil
}

// contributionDraft assembles the contribution data, applying the
// recurrence transform when frequency is set.
func (s *Service) contributionDraft(ctx context.Context, sub *submission) crm.ContributionDraft {
	req := sub.req

	receiveDate := requestcontext.Now(ctx)
	if req.ReceiveDate != 0 {
		receiveDate = time.Unix(req.ReceiveDate, 0)
	}

	draft := crm.ContributionDraft{
		FinancialTypeID: intOr(s.cfg.FinancialTypeID, 1),
		CampaignID:      req.CampaignID,
		ContactID:       sub.contactID,
		TotalAmount:     float64(req.Amount) / 100,
		Source:          s.cfg.Source(req.ContributionSource),
		ReceiveDate:     receiveDate.Format(timestampLayout),
	}

	if req.Frequency != 0 {
		draft.FrequencyUnit = "month"
		draft.FrequencyInterval = 12 / req.Frequency
		// Known quirk, preserved: the recurring amount is derived from the
		// already-divided total, then overwritten on the direct-debit path.
		draft.Amount = draft.TotalAmount / 100
		draft.TotalAmount = 0
		sub.annualAmount = float64(req.Amount) * float64(req.Frequency) / 100
	}
	return draft
}

// dispatchPayment runs exactly one payment branch and returns the primary
// created record.
func (s *Service) dispatchPayment(ctx context.Context, sub *submission, draft crm.ContributionDraft) (any, error) {
	req := sub.req

	switch req.PaymentInstrument {
	case models.InstrumentDirectDebit:
		return s.submitDirectDebit(ctx, sub, draft)

	case models.InstrumentDirectCapture:
		draft.PaymentInstrumentID = intOr(s.cfg.PayPalInstrumentID, 12)
		draft.ContributionStatusID = "Completed"
		contribution, err := s.platform.Contributions.CreateContribution(ctx, draft)
		if err != nil {
			return nil, apierrors.Wrap(err, apierrors.CodeInternal, "failed to create contribution")
		}
		return contribution, nil

	default:
		return nil, apierrors.New(apierrors.CodeInvalidFormat, "Invalid payment instrument.")
	}
}

func (s *Service) submitDirectDebit(ctx context.Context, sub *submission, draft crm.ContributionDraft) (any, error) {
	req := sub.req

	if req.IBAN == "" {
		return nil, apierrors.New(apierrors.CodeInvalidFormat, "For donations via SEPA, the IBAN must be provided.")
	}
	if err := s.platform.Mandates.VerifyIBAN(req.IBAN); err != nil {
		return nil, apierrors.New(apierrors.CodeInvalidFormat, err.Error())
	}
	if req.BIC == "" {
		return nil, apierrors.New(apierrors.CodeInvalidFormat, "For donations via SEPA, the SWIFT code (BIC) must be provided.")
	}
	if err := s.platform.Mandates.VerifyBIC(req.BIC); err != nil {
		return nil, apierrors.New(apierrors.CodeInvalidFormat, err.Error())
	}

	startDate, err := s.platform.Mandates.NextStartDate(ctx)
	if err != nil {
		return nil, apierrors.Wrap(err, apierrors.CodeInternal, "failed to determine mandate start date")
	}

	mandateType := crm.MandateOneOff
	if req.Frequency != 0 {
		mandateType = crm.MandateRecurring
	}
	// The mandate amount is the single-divided figure; on the recurring
	// path this overwrites the draft's doubly-divided amount.
	draft.Amount = float64(req.Amount) / 100

	mandateReq := crm.MandateRequest{
		Type:          mandateType,
		IBAN:          req.IBAN,
		BIC:           req.BIC,
		AccountHolder: req.AccountHolder,
		CreditorID:    intOr(s.cfg.SEPACreditorID, 1),
		Amount:        draft.Amount,
		StartDate:     startDate,
		Contribution:  draft,
	}
	if s.cfg.LoggingEnabled {
		raw, _ := json.Marshal(mandateReq)
		s.logger.DebugContext(ctx, "mandate request",
			"request_id", requestcontext.RequestID(ctx),
			"mandate", string(raw),
		)
	}

	mandate, err := s.platform.Mandates.CreateMandate(ctx, mandateReq)
	if err != nil {
		return nil, apierrors.Wrap(err, apierrors.CodeInternal, "failed to create SEPA mandate")
	}
	if mandate.EntityID == 0 {
		// A mandate without a linked record yields an empty result value.
		return nil, nil
	}

	switch mandate.EntityTable {
	case crm.EntityContribution:
		contribution, err := s.platform.Contributions.GetContribution(ctx, mandate.EntityID)
		if err != nil {
			return nil, apierrors.Wrap(err, apierrors.CodeInvalidFormat, "Could not load contribution for SEPA mandate.")
		}
		return contribution, nil

	case crm.EntityContributionRecur:
		sub.recurringContributionID = mandate.EntityID
		recurring, err := s.platform.Contributions.GetRecurringContribution(ctx, mandate.EntityID)
		if err != nil {
			return nil, apierrors.Wrap(err, apierrors.CodeInvalidFormat, "Could not load contribution for SEPA mandate.")
		}
		return recurring, nil

	default:
		return nil, apierrors.New(apierrors.CodeInvalidFormat, "Could not load contribution for SEPA mandate.")
	}
}

// provisionMembership creates the membership and, when a recurring
// contribution exists, patches the payment-contract linkage in a second
// call. The linkage target only exists after contribution-side work, so
// the two calls cannot be collapsed.
func (s *Service) provisionMembership(ctx context.Context, sub *submission) error {
	req := sub.req

	data := crm.Params{
		"membership_type_id": req.MembershipTypeID,
		"contact_id":         sub.contactID,
		"source":             s.cfg.Source(req.ContributionSource),
	}
	if req.CampaignID != 0 {
		data["campaign_id"] = req.CampaignID
	}
	if req.MembershipSubtypeID != 0 {
		data["membership_type.membership_subtype"] = req.MembershipSubtypeID
	}

	startDate, err := s.platform.Mandates.NextStartDate(ctx)
	if err != nil {
		return apierrors.Wrap(err, apierrors.CodeInternal, "failed to determine membership start date")
	}
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return apierrors.Wrap(err, apierrors.CodeInternal, "invalid membership start date")
	}
	data["start_date"] = startDate
	data["end_date"] = start.AddDate(1, 0, -1).Format(dateLayout)
	data["join_date"] = requestcontext.Now(ctx).Format(dateLayout)

	if sub.annualAmount > 0 {
		data["membership_info.membership_annual"] = sub.annualAmount
	}

	resolved, err := s.platform.CustomFields.ResolveCustomFields(ctx, data)
	if err != nil {
		return apierrors.Wrap(err, apierrors.CodeInternal, "failed to resolve membership custom fields")
	}
	if s.cfg.LoggingEnabled {
		raw, _ := json.Marshal(resolved)
		s.logger.DebugContext(ctx, "membership create",
			"request_id", requestcontext.RequestID(ctx),
			"params", string(raw),
		)
	}

	membershipID, err := s.platform.Memberships.CreateMembership(ctx, resolved)
	if err != nil {
		return apierrors.Wrap(err, apierrors.CodeInternal, "failed to create membership")
	}

	// Reload to get the full record.
	membership, err := s.platform.Memberships.GetMembership(ctx, membershipID)
	if err != nil {
		return apierrors.Wrap(err, apierrors.CodeInternal, "failed to load membership")
	}

	if sub.recurringContributionID != 0 {
		update := crm.Params{
			"id":         membership.ID,
			"contact_id": membership.ContactID,
			"membership_info.membership_paid_through": sub.recurringContributionID,
		}
		resolvedUpdate, err := s.platform.CustomFields.ResolveCustomFields(ctx, update)
		if err != nil {
			return apierrors.Wrap(err, apierrors.CodeInternal, "failed to resolve membership custom fields")
		}
		if s.cfg.LoggingEnabled {
			raw, _ := json.Marshal(resolvedUpdate)
			s.logger.DebugContext(ctx, "membership update",
				"request_id", requestcontext.RequestID(ctx),
				"params", string(raw),
			)
		}
		if err := s.platform.Memberships.UpdateMembership(ctx, resolvedUpdate); err != nil {
			return apierrors.Wrap(err, apierrors.CodeInternal, "failed to link membership to payment contract")
		}
	}

	// Membership output is deliberately withheld from the response.
	return nil
}

// compensate force-rolls-back the enclosing transaction frame, then
// writes the failure-audit activity. Both the rollback and the audit are
// best effort: their own failures become notices on the original error,
// never replacements for it.
func (s *Service) compensate(ctx context.Context, sub *submission, origErr *apierrors.Error) *apierrors.Error {
	if err := s.platform.Tx.ForceRollback(ctx); err != nil {
		s.logger.WarnContext(ctx, "transaction rollback failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}

	notices := map[string]any{}
	activity, err := s.createFailureActivity(ctx, sub)
	if err != nil {
		notices["messages"] = []string{`Failed creating an activity of the type "Failed contribution processing".`}
		notices["result"] = httputil.Envelope(err)
	} else {
		notices["result"] = activity
		s.metrics.FailureActivityCreated()
		if s.cfg.FailedContributionAssigneeID == 0 {
			notices["messages"] = []string{`No contact ID is configured for assigning an activity of the type "Failed contribution processing". The activity has not been assigned to a contact.`}
		}
	}

	return origErr.WithExtra("additional_notices", map[string]any{"activity": notices})
}

func (s *Service) createFailureActivity(ctx context.Context, sub *submission) (*crm.Activity, error) {
	typeID, err := s.platform.Options.OptionValue(ctx, "activity_type", failureActivityType)
	if err != nil {
		return nil, err
	}
	statusID, err := s.platform.Options.OptionValue(ctx, "activity_status", "Scheduled")
	if err != nil {
		return nil, err
	}

	details, _ := json.Marshal(sub.req)
	return s.platform.Activities.CreateActivity(ctx, crm.ActivityParams{
		AssigneeID:       s.cfg.FailedContributionAssigneeID,
		ActivityTypeID:   typeID,
		Subject:          failureActivitySubject,
		ActivityDateTime: requestcontext.Now(ctx).Format(timestampLayout),
		SourceContactID:  requestcontext.ActorContactID(ctx),
		StatusID:         statusID,
		TargetID:         sub.contactID,
		CampaignID:       sub.campaignID,
		Details:          string(details),
	})
}

func intOr(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}
