// Package rest is the production adapter for the internal/crm interfaces.
// It speaks the host platform's entity/action REST convention: every call
// is a POST carrying entity, action, and a JSON parameter blob, answered
// with an is_error envelope whose values hold the affected records.
//
// Records arrive with all scalars as strings, so the decoding helpers
// coerce by shape rather than by declared type.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"provegapi/internal/crm"
	"provegapi/internal/platform/config"
	"provegapi/internal/sepa"
	"provegapi/pkg/apierrors"
	"provegapi/pkg/platform/sentinel"
	"provegapi/pkg/requestcontext"
)

// Client implements every collaborator interface in internal/crm.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	logger     *slog.Logger

	mu           sync.Mutex
	customFields map[string]string // "group.field" alias -> "custom_N"
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New constructs the adapter. The default HTTP client carries a timeout
// because mandate creation is the slowest call the platform serves.
func New(cfg config.Config, opts ...Option) *Client {
	c := &Client{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       slog.Default(),
		customFields: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// flexID tolerates the platform's habit of returning ids either as
// numbers or as quoted strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	*f = flexID(strings.Trim(string(data), `"`))
	return nil
}

func (f flexID) Int() int {
	n, _ := strconv.Atoi(string(f))
	return n
}

// envelope is the platform's uniform response shape.
type envelope struct {
	IsError      int             `json:"is_error"`
	ErrorMessage string          `json:"error_message"`
	ErrorCode    string          `json:"error_code"`
	ID           flexID          `json:"id"`
	Count        int             `json:"count"`
	Values       json.RawMessage `json:"values"`
}

func (c *Client) call(ctx context.Context, entity, action string, params crm.Params) (*envelope, error) {
	blob, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s.%s params: %w", entity, action, err)
	}

	form := url.Values{}
	form.Set("entity", entity)
	form.Set("action", action)
	form.Set("api_key", c.cfg.CRMAPIKey)
	form.Set("key", c.cfg.CRMSiteKey)
	form.Set("json", string(blob))

	endpoint := strings.TrimRight(c.cfg.CRMBaseURL, "/") + "/civicrm/extern/rest.php"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build %s.%s request: %w", entity, action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w: %v", entity, action, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: read response: %w", entity, action, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s.%s: status %d: %w", entity, action, resp.StatusCode, sentinel.ErrUnavailable)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s.%s: decode envelope: %w", entity, action, err)
	}
	if env.IsError != 0 {
		return nil, apierrors.New(apierrors.Code(env.ErrorCode),
			fmt.Sprintf("%s.%s: %s", entity, action, env.ErrorMessage))
	}
	if c.cfg.LoggingEnabled {
		c.logger.DebugContext(ctx, "platform call",
			"request_id", requestcontext.RequestID(ctx),
			"entity", entity,
			"action", action,
			"count", env.Count,
		)
	}
	return &env, nil
}

// record is a decoded entity with string-typed scalars.
type record map[string]any

// records flattens the values payload, which is an id-keyed object on
// reads and a plain array on some writes.
func (e *envelope) records() ([]record, error) {
	if len(e.Values) == 0 || string(e.Values) == "null" {
		return nil, nil
	}
	var list []record
	if err := json.Unmarshal(e.Values, &list); err == nil {
		return list, nil
	}
	var keyed map[string]record
	if err := json.Unmarshal(e.Values, &keyed); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	out := make([]record, 0, len(keyed))
	for _, r := range keyed {
		out = append(out, r)
	}
	return out, nil
}

// single returns the one record a getsingle-style call yields, preferring
// the record matching the envelope id.
func (e *envelope) single() (record, error) {
	records, err := e.records()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, sentinel.ErrNotFound
	}
	if id := string(e.ID); id != "" && id != "0" {
		for _, r := range records {
			if r.str("id") == id {
				return r, nil
			}
		}
	}
	return records[0], nil
}

func (r record) str(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func (r record) intval(key string) int {
	switch v := r[key].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}

func (r record) floatval(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

// ---------------------------------------------------------------------------
// ContactResolver
// ---------------------------------------------------------------------------

func (c *Client) GetOrCreateContact(ctx context.Context, contactType string, data crm.ContactData) (int, error) {
	env, err := c.call(ctx, "Contact", "get", crm.Params{
		"contact_type": contactType,
		"email":        data.Email,
	})
	if err != nil {
		return 0, err
	}
	if env.Count == 1 {
		r, err := env.single()
		if err != nil {
			return 0, err
		}
		return r.intval("id"), nil
	}
	// No unambiguous match: create a fresh contact carrying the full
	// identity record.
	params := crm.Params{
		"contact_type":   contactType,
		"first_name":     data.FirstName,
		"last_name":      data.LastName,
		"email":          data.Email,
		"street_address": data.StreetAddress,
		"city":           data.City,
		"postal_code":    data.PostalCode,
		"country":        data.Country,
	}
	if data.GenderID != "" {
		params["gender_id"] = data.GenderID
	}
	env, err = c.call(ctx, "Contact", "create", params)
	if err != nil {
		return 0, err
	}
	return env.ID.Int(), nil
}

// ---------------------------------------------------------------------------
// CampaignResolver
// ---------------------------------------------------------------------------

func (c *Client) CampaignFromCode(ctx context.Context, code string) (int, error) {
	env, err := c.call(ctx, "Campaign", "getsingle", crm.Params{
		"external_identifier": code,
	})
	if err != nil {
		return 0, err
	}
	r, err := env.single()
	if err != nil {
		return 0, fmt.Errorf("campaign %q: %w", code, err)
	}
	return r.intval("id"), nil
}

// ---------------------------------------------------------------------------
// OptionValueSource
// ---------------------------------------------------------------------------

func (c *Client) OptionValues(ctx context.Context, group string) (map[string]string, error) {
	env, err := c.call(ctx, "OptionValue", "get", crm.Params{
		"option_group_id": group,
		"options":         crm.Params{"limit": 0},
	})
	if err != nil {
		return nil, err
	}
	records, err := env.records()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(records))
	for _, r := range records {
		out[r.str("value")] = r.str("name")
	}
	return out, nil
}

func (c *Client) OptionValue(ctx context.Context, group, name string) (string, error) {
	env, err := c.call(ctx, "OptionValue", "getsingle", crm.Params{
		"option_group_id": group,
		"name":            name,
	})
	if err != nil {
		return "", err
	}
	r, err := env.single()
	if err != nil {
		return "", fmt.Errorf("option %s/%s: %w", group, name, err)
	}
	return r.str("value"), nil
}

// ---------------------------------------------------------------------------
// CustomFieldResolver
// ---------------------------------------------------------------------------

func (c *Client) ResolveCustomFields(ctx context.Context, params crm.Params) (crm.Params, error) {
	out := make(crm.Params, len(params))
	for key, value := range params {
		group, field, ok := strings.Cut(key, ".")
		if !ok {
			out[key] = value
			continue
		}
		resolved, err := c.customField(ctx, group, field)
		if err != nil {
			return nil, err
		}
		out[resolved] = value
	}
	return out, nil
}

func (c *Client) customField(ctx context.Context, group, field string) (string, error) {
	alias := group + "." + field

	c.mu.Lock()
	if resolved, ok := c.customFields[alias]; ok {
		c.mu.Unlock()
		return resolved, nil
	}
	c.mu.Unlock()

	env, err := c.call(ctx, "CustomField", "getsingle", crm.Params{
		"custom_group_id": group,
		"name":            field,
	})
	if err != nil {
		return "", err
	}
	r, err := env.single()
	if err != nil {
		return "", fmt.Errorf("custom field %s: %w", alias, err)
	}
	resolved := "custom_" + r.str("id")

	c.mu.Lock()
	c.customFields[alias] = resolved
	c.mu.Unlock()
	return resolved, nil
}

// ---------------------------------------------------------------------------
// MandateService
// ---------------------------------------------------------------------------

func (c *Client) VerifyIBAN(iban string) error { return sepa.VerifyIBAN(iban) }

func (c *Client) VerifyBIC(bic string) error { return sepa.VerifyBIC(bic) }

// NextStartDate is the first collection date the creditor can honor:
// submission time plus the configured notice period.
func (c *Client) NextStartDate(ctx context.Context) (string, error) {
	days := c.cfg.MandateNoticeDays
	if days == 0 {
		days = 2
	}
	return requestcontext.Now(ctx).AddDate(0, 0, days).Format("2006-01-02"), nil
}

func (c *Client) CreateMandate(ctx context.Context, req crm.MandateRequest) (*crm.Mandate, error) {
	params := crm.Params{
		"type":        req.Type,
		"iban":        req.IBAN,
		"bic":         req.BIC,
		"creditor_id": req.CreditorID,
		"amount":      req.Amount,
		"start_date":  req.StartDate,

		"contact_id":         req.Contribution.ContactID,
		"financial_type_id":  req.Contribution.FinancialTypeID,
		"campaign_id":        req.Contribution.CampaignID,
		"source":             req.Contribution.Source,
		"receive_date":       req.Contribution.ReceiveDate,
		"frequency_unit":     req.Contribution.FrequencyUnit,
		"frequency_interval": req.Contribution.FrequencyInterval,
	}
	if req.Contribution.TotalAmount != 0 {
		params["total_amount"] = req.Contribution.TotalAmount
	}
	if req.AccountHolder != "" {
		params["account_holder"] = req.AccountHolder
	}

	env, err := c.call(ctx, "SepaMandate", "createfull", params)
	if err != nil {
		return nil, err
	}
	r, err := env.single()
	if err != nil {
		return nil, fmt.Errorf("mandate: %w", err)
	}
	return &crm.Mandate{
		ID:          r.intval("id"),
		Reference:   r.str("reference"),
		Type:        r.str("type"),
		IBAN:        r.str("iban"),
		BIC:         r.str("bic"),
		EntityTable: r.str("entity_table"),
		EntityID:    r.intval("entity_id"),
	}, nil
}

// ---------------------------------------------------------------------------
// ContributionService
// ---------------------------------------------------------------------------

func (c *Client) CreateContribution(ctx context.Context, draft crm.ContributionDraft) (*crm.Contribution, error) {
	params := crm.Params{
		"contact_id":        draft.ContactID,
		"financial_type_id": draft.FinancialTypeID,
		"total_amount":      draft.TotalAmount,
		"source":            draft.Source,
		"receive_date":      draft.ReceiveDate,
	}
	if draft.CampaignID != 0 {
		params["campaign_id"] = draft.CampaignID
	}
	if draft.PaymentInstrumentID != 0 {
		params["payment_instrument_id"] = draft.PaymentInstrumentID
	}
	if draft.ContributionStatusID != "" {
		params["contribution_status_id"] = draft.ContributionStatusID
	}

	env, err := c.call(ctx, "Contribution", "create", params)
	if err != nil {
		return nil, err
	}
	r, err := env.single()
	if err != nil {
		return nil, fmt.Errorf("contribution: %w", err)
	}
	return contributionFromRecord(r), nil
}

func (c *Client) GetContribution(ctx context.Context, id int) (*crm.Contribution, error) {
	env, err := c.call(ctx, "Contribution", "getsingle", crm.Params{"id": id})
	if err != nil {
		return nil, err
	}
	r, err := env.single()
	if err != nil {
		return nil, fmt.Errorf("contribution %d: %w", id, err)
	}
	return contributionFromRecord(r), nil
}

func (c *Client) GetRecurringContribution(ctx context.Context, id int) (*crm.RecurringContribution, error) {
	env, err := c.call(ctx, "ContributionRecur", "getsingle", crm.Params{"id": id})
	if err != nil {
		return nil, err
	}
	r, err := env.single()
	if err != nil {
		return nil, fmt.Errorf("recurring contribution %d: %w", id, err)
	}
	return &crm.RecurringContribution{
		ID:                r.intval("id"),
		ContactID:         r.intval("contact_id"),
		CampaignID:        r.intval("campaign_id"),
		Amount:            r.floatval("amount"),
		FrequencyUnit:     r.str("frequency_unit"),
		FrequencyInterval: r.intval("frequency_interval"),
		Source:            r.str("source"),
		StartDate:         r.str("start_date"),
	}, nil
}

func contributionFromRecord(r record) *crm.Contribution {
	return &crm.Contribution{
		ID:                   r.intval("id"),
		ContactID:            r.intval("contact_id"),
		FinancialTypeID:      r.intval("financial_type_id"),
		CampaignID:           r.intval("campaign_id"),
		TotalAmount:          r.floatval("total_amount"),
		Source:               r.str("source"),
		ReceiveDate:          r.str("receive_date"),
		PaymentInstrumentID:  r.intval("payment_instrument_id"),
		ContributionStatusID: r.str("contribution_status_id"),
	}
}

// ---------------------------------------------------------------------------
// MembershipService
// ---------------------------------------------------------------------------

func (c *Client) CreateMembership(ctx context.Context, params crm.Params) (int, error) {
	env, err := c.call(ctx, "Membership", "create", params)
	if err != nil {
		return 0, err
	}
	return env.ID.Int(), nil
}

func (c *Client) GetMembership(ctx context.Context, id int) (*crm.Membership, error) {
	env, err := c.call(ctx, "Membership", "getsingle", crm.Params{"id": id})
	if err != nil {
		return nil, err
	}
	r, err := env.single()
	if err != nil {
		return nil, fmt.Errorf("membership %d: %w", id, err)
	}
	m := &crm.Membership{
		ID:               r.intval("id"),
		ContactID:        r.intval("contact_id"),
		MembershipTypeID: r.intval("membership_type_id"),
		CampaignID:       r.intval("campaign_id"),
		Source:           r.str("source"),
		JoinDate:         r.str("join_date"),
		StartDate:        r.str("start_date"),
		EndDate:          r.str("end_date"),
		Custom:           crm.Params{},
	}
	for key, value := range r {
		if strings.HasPrefix(key, "custom_") {
			m.Custom[key] = value
		}
	}
	return m, nil
}

func (c *Client) UpdateMembership(ctx context.Context, params crm.Params) error {
	_, err := c.call(ctx, "Membership", "create", params)
	return err
}

// ---------------------------------------------------------------------------
// GroupService
// ---------------------------------------------------------------------------

func (c *Client) SetGroupStatus(ctx context.Context, groupID, contactID int, status string) (*crm.GroupContact, error) {
	env, err := c.call(ctx, "GroupContact", "create", crm.Params{
		"group_id":   groupID,
		"contact_id": contactID,
		"status":     status,
	})
	if err != nil {
		return nil, err
	}
	gc := &crm.GroupContact{GroupID: groupID, ContactID: contactID, Status: status}
	if r, err := env.single(); err == nil {
		gc.ID = r.intval("id")
	}
	return gc, nil
}

// ---------------------------------------------------------------------------
// ActivityService
// ---------------------------------------------------------------------------

func (c *Client) CreateActivity(ctx context.Context, params crm.ActivityParams) (*crm.Activity, error) {
	p := crm.Params{
		"activity_type_id":   params.ActivityTypeID,
		"subject":            params.Subject,
		"activity_date_time": params.ActivityDateTime,
		"status_id":          params.StatusID,
		"details":            params.Details,
	}
	if params.AssigneeID != 0 {
		p["assignee_id"] = params.AssigneeID
	}
	if params.SourceContactID != 0 {
		p["source_contact_id"] = params.SourceContactID
	}
	if params.TargetID != 0 {
		p["target_id"] = params.TargetID
	}
	if params.CampaignID != 0 {
		p["campaign_id"] = params.CampaignID
	}

	env, err := c.call(ctx, "Activity", "create", p)
	if err != nil {
		return nil, err
	}
	activity := &crm.Activity{
		AssigneeID:       params.AssigneeID,
		ActivityTypeID:   params.ActivityTypeID,
		Subject:          params.Subject,
		ActivityDateTime: params.ActivityDateTime,
		SourceContactID:  params.SourceContactID,
		StatusID:         params.StatusID,
		TargetID:         params.TargetID,
		CampaignID:       params.CampaignID,
		Details:          params.Details,
	}
	if r, err := env.single(); err == nil {
		activity.ID = r.intval("id")
	} else {
		activity.ID = env.ID.Int()
	}
	return activity, nil
}

// ---------------------------------------------------------------------------
// TransactionFrame
// ---------------------------------------------------------------------------

// ForceRollback is a no-op over REST: each entity call commits on the
// platform individually, so there is no shared frame to undo. The
// failure-audit activity still records what went wrong.
func (c *Client) ForceRollback(ctx context.Context) error {
	return nil
}
