// Package crmtest provides an in-memory fake of the host platform for
// tests. It implements every collaborator interface in internal/crm with
// deterministic IDs and a transaction frame whose undo log covers
// contributions, recurring contributions, mandates, memberships, and
// group records. Contacts and activities are durable: contact
// get-or-create commits outside the request frame on the real platform,
// and the failure-audit activity is written after rollback.
package crmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"provegapi/internal/crm"
	"provegapi/internal/sepa"
	"provegapi/pkg/platform/sentinel"
)

// Contact is a stored fake contact.
type Contact struct {
	ID   int
	Type string
	Data crm.ContactData
}

// Fake implements all internal/crm collaborator interfaces.
type Fake struct {
	mu     sync.Mutex
	nextID int

	Contacts      []*Contact
	Contributions map[int]*crm.Contribution
	Recurring     map[int]*crm.RecurringContribution
	Mandates      map[int]*crm.Mandate
	Memberships   map[int]crm.Params
	GroupContacts []*crm.GroupContact
	Activities    []*crm.Activity

	// Recorded membership calls, in order, for asserting the two-phase
	// create-then-patch behavior.
	MembershipCreates []crm.Params
	MembershipUpdates []crm.Params

	// Seeded lookup data.
	Options        map[string]map[string]string // group -> value -> name
	Campaigns      map[string]int               // external code -> campaign id
	CustomFieldIDs map[string]int               // alias -> internal field id
	StartDate      string

	// Failure injection.
	ContactErr            error
	FailContactResolution bool
	MandateErr            error
	MandateNoEntity       bool
	MandateDanglingEntity bool
	ContributionErr       error
	MembershipErr         error
	GroupErr              error
	ActivityErr           error

	undo []func()
}

// New returns a Fake seeded with the option groups and custom-field
// aliases the operations rely on.
func New() *Fake {
	return &Fake{
		Contributions: make(map[int]*crm.Contribution),
		Recurring:     make(map[int]*crm.RecurringContribution),
		Mandates:      make(map[int]*crm.Mandate),
		Memberships:   make(map[int]crm.Params),
		Options: map[string]map[string]string{
			"gender": {
				"1": "Female",
				"2": "Male",
				"3": "Other",
			},
			"activity_type": {
				"61": "provegapi_failed_contribution_processing",
			},
			"activity_status": {
				"1": "Scheduled",
				"2": "Completed",
			},
		},
		Campaigns: map[string]int{},
		CustomFieldIDs: map[string]int{
			"membership_info.membership_annual":       201,
			"membership_info.membership_paid_through": 202,
			"membership_type.membership_subtype":      203,
		},
		StartDate: "2026-09-01",
	}
}

func (f *Fake) id() int {
	f.nextID++
	return f.nextID
}

// ---------------------------------------------------------------------------
// ContactResolver
// ---------------------------------------------------------------------------

func (f *Fake) GetOrCreateContact(ctx context.Context, contactType string, data crm.ContactData) (int, error) {
	if f.ContactErr != nil {
		return 0, f.ContactErr
	}
	if f.FailContactResolution {
		return 0, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Contacts {
		if c.Type == contactType && strings.EqualFold(c.Data.Email, data.Email) {
			return c.ID, nil
		}
	}
	c := &Contact{ID: f.id(), Type: contactType, Data: data}
	// Durable: not registered in the undo log.
	f.Contacts = append(f.Contacts, c)
	return c.ID, nil
}

// ---------------------------------------------------------------------------
// CampaignResolver
// ---------------------------------------------------------------------------

func (f *Fake) CampaignFromCode(ctx context.Context, code string) (int, error) {
	if id, ok := f.Campaigns[code]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("campaign %q: %w", code, sentinel.ErrNotFound)
}

// ---------------------------------------------------------------------------
// OptionValueSource
// ---------------------------------------------------------------------------

func (f *Fake) OptionValues(ctx context.Context, group string) (map[string]string, error) {
	values, ok := f.Options[group]
	if !ok {
		return nil, fmt.Errorf("option group %q: %w", group, sentinel.ErrNotFound)
	}
	out := make(map[string]string, len(values))
	for v, name := range values {
		out[v] = name
	}
	return out, nil
}

func (f *Fake) OptionValue(ctx context.Context, group, name string) (string, error) {
	values, ok := f.Options[group]
	if !ok {
		return "", fmt.Errorf("option group %q: %w", group, sentinel.ErrNotFound)
	}
	for v, n := range values {
		if n == name {
			return v, nil
		}
	}
	return "", fmt.Errorf("option %s/%s: %w", group, name, sentinel.ErrNotFound)
}

// ---------------------------------------------------------------------------
// CustomFieldResolver
// ---------------------------------------------------------------------------

func (f *Fake) ResolveCustomFields(ctx context.Context, params crm.Params) (crm.Params, error) {
	out := make(crm.Params, len(params))
	for key, value := range params {
		if id, ok := f.CustomFieldIDs[key]; ok {
			out[fmt.Sprintf("custom_%d", id)] = value
			continue
		}
		out[key] = value
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// MandateService
// ---------------------------------------------------------------------------

func (f *Fake) VerifyIBAN(iban string) error { return sepa.VerifyIBAN(iban) }

func (f *Fake) VerifyBIC(bic string) error { return sepa.VerifyBIC(bic) }

func (f *Fake) NextStartDate(ctx context.Context) (string, error) {
	return f.StartDate, nil
}

func (f *Fake) CreateMandate(ctx context.Context, req crm.MandateRequest) (*crm.Mandate, error) {
	if f.MandateErr != nil {
		return nil, f.MandateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	mandate := &crm.Mandate{
		ID:        f.id(),
		Reference: fmt.Sprintf("MANDATE-%04d", f.nextID),
		Type:      req.Type,
		IBAN:      req.IBAN,
		BIC:       req.BIC,
	}

	switch {
	case f.MandateNoEntity:
		// Mandate without a linked contribution record.
	case req.Type == crm.MandateRecurring:
		mandate.EntityTable = crm.EntityContributionRecur
		recur := &crm.RecurringContribution{
			ID:                f.id(),
			ContactID:         req.Contribution.ContactID,
			CampaignID:        req.Contribution.CampaignID,
			Amount:            req.Amount,
			FrequencyUnit:     req.Contribution.FrequencyUnit,
			FrequencyInterval: req.Contribution.FrequencyInterval,
			Source:            req.Contribution.Source,
			StartDate:         req.StartDate,
		}
		mandate.EntityID = recur.ID
		if !f.MandateDanglingEntity {
			f.Recurring[recur.ID] = recur
			f.addUndo(func() { delete(f.Recurring, recur.ID) })
		}
	default:
		mandate.EntityTable = crm.EntityContribution
		contribution := &crm.Contribution{
			ID:              f.id(),
			ContactID:       req.Contribution.ContactID,
			FinancialTypeID: req.Contribution.FinancialTypeID,
			CampaignID:      req.Contribution.CampaignID,
			TotalAmount:     req.Amount,
			Source:          req.Contribution.Source,
			ReceiveDate:     req.Contribution.ReceiveDate,
		}
		mandate.EntityID = contribution.ID
		if !f.MandateDanglingEntity {
			f.Contributions[contribution.ID] = contribution
			f.addUndo(func() { delete(f.Contributions, contribution.ID) })
		}
	}

	f.Mandates[mandate.ID] = mandate
	f.addUndo(func() { delete(f.Mandates, mandate.ID) })
	return mandate, nil
}

// ---------------------------------------------------------------------------
// ContributionService
// ---------------------------------------------------------------------------

func (f *Fake) CreateContribution(ctx context.Context, draft crm.ContributionDraft) (*crm.Contribution, error) {
	if f.ContributionErr != nil {
		return nil, f.ContributionErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	contribution := &crm.Contribution{
		ID:                   f.id(),
		ContactID:            draft.ContactID,
		FinancialTypeID:      draft.FinancialTypeID,
		CampaignID:           draft.CampaignID,
		TotalAmount:          draft.TotalAmount,
		Source:               draft.Source,
		ReceiveDate:          draft.ReceiveDate,
		PaymentInstrumentID:  draft.PaymentInstrumentID,
		ContributionStatusID: draft.ContributionStatusID,
	}
	f.Contributions[contribution.ID] = contribution
	f.addUndo(func() { delete(f.Contributions, contribution.ID) })
	return contribution, nil
}

func (f *Fake) GetContribution(ctx context.Context, id int) (*crm.Contribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.Contributions[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("contribution %d: %w", id, sentinel.ErrNotFound)
}

func (f *Fake) GetRecurringContribution(ctx context.Context, id int) (*crm.RecurringContribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.Recurring[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("recurring contribution %d: %w", id, sentinel.ErrNotFound)
}

// ---------------------------------------------------------------------------
// MembershipService
// ---------------------------------------------------------------------------

func (f *Fake) CreateMembership(ctx context.Context, params crm.Params) (int, error) {
	if f.MembershipErr != nil {
		return 0, f.MembershipErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	stored := params.Clone()
	stored["id"] = id
	f.Memberships[id] = stored
	f.MembershipCreates = append(f.MembershipCreates, stored)
	f.addUndo(func() { delete(f.Memberships, id) })
	return id, nil
}

func (f *Fake) GetMembership(ctx context.Context, id int) (*crm.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.Memberships[id]
	if !ok {
		return nil, fmt.Errorf("membership %d: %w", id, sentinel.ErrNotFound)
	}
	m := &crm.Membership{ID: id, Custom: crm.Params{}}
	for key, value := range stored {
		switch key {
		case "id":
		case "contact_id":
			m.ContactID, _ = value.(int)
		case "membership_type_id":
			m.MembershipTypeID, _ = value.(int)
		case "campaign_id":
			m.CampaignID, _ = value.(int)
		case "source":
			m.Source, _ = value.(string)
		case "join_date":
			m.JoinDate, _ = value.(string)
		case "start_date":
			m.StartDate, _ = value.(string)
		case "end_date":
			m.EndDate, _ = value.(string)
		default:
			m.Custom[key] = value
		}
	}
	return m, nil
}

func (f *Fake) UpdateMembership(ctx context.Context, params crm.Params) error {
	if f.MembershipErr != nil {
		return f.MembershipErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := params["id"].(int)
	stored, ok := f.Memberships[id]
	if !ok {
		return fmt.Errorf("membership %d: %w", id, sentinel.ErrNotFound)
	}
	for key, value := range params {
		stored[key] = value
	}
	f.MembershipUpdates = append(f.MembershipUpdates, params.Clone())
	return nil
}

// ---------------------------------------------------------------------------
// GroupService
// ---------------------------------------------------------------------------

func (f *Fake) SetGroupStatus(ctx context.Context, groupID, contactID int, status string) (*crm.GroupContact, error) {
	if f.GroupErr != nil {
		return nil, f.GroupErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, gc := range f.GroupContacts {
		if gc.GroupID == groupID && gc.ContactID == contactID {
			gc.Status = status
			return gc, nil
		}
	}
	gc := &crm.GroupContact{ID: f.id(), GroupID: groupID, ContactID: contactID, Status: status}
	f.GroupContacts = append(f.GroupContacts, gc)
	f.addUndo(func() {
		for i, cur := range f.GroupContacts {
			if cur == gc {
				f.GroupContacts = append(f.GroupContacts[:i], f.GroupContacts[i+1:]...)
				return
			}
		}
	})
	return gc, nil
}

// ---------------------------------------------------------------------------
// ActivityService
// ---------------------------------------------------------------------------

func (f *Fake) CreateActivity(ctx context.Context, params crm.ActivityParams) (*crm.Activity, error) {
	if f.ActivityErr != nil {
		return nil, f.ActivityErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	activity := &crm.Activity{
		ID:               f.id(),
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
	// Durable: written after the frame rollback on the real platform.
	f.Activities = append(f.Activities, activity)
	return activity, nil
}

// ---------------------------------------------------------------------------
// TransactionFrame
// ---------------------------------------------------------------------------

func (f *Fake) ForceRollback(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.undo) - 1; i >= 0; i-- {
		f.undo[i]()
	}
	f.undo = nil
	return nil
}

func (f *Fake) addUndo(fn func()) {
	f.undo = append(f.undo, fn)
}
