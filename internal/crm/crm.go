// Package crm declares the host-platform collaborators the API operations
// call. The platform owns contact deduplication, mandate creation,
// option-value and custom-field resolution, and transaction management;
// this service only orchestrates calls against these interfaces.
//
// Production wiring uses the REST adapter in crm/rest; tests use the
// in-memory fake in crm/crmtest.
package crm

import "context"

// ContactResolver finds an existing contact matching the given identity
// data or creates a new one. Returns the contact ID, or 0 when the
// platform could neither match nor create.
type ContactResolver interface {
	GetOrCreateContact(ctx context.Context, contactType string, data ContactData) (int, error)
}

// CampaignResolver maps an external campaign code to a campaign ID.
type CampaignResolver interface {
	CampaignFromCode(ctx context.Context, code string) (int, error)
}

// OptionValueSource resolves the platform's configured enumerations.
type OptionValueSource interface {
	// OptionValues returns value -> name for every entry of a group.
	OptionValues(ctx context.Context, group string) (map[string]string, error)
	// OptionValue returns the value of the named entry in a group.
	OptionValue(ctx context.Context, group, name string) (string, error)
}

// CustomFieldResolver translates human-readable extended-field aliases
// ("group.field") into the platform's internal field identifiers.
type CustomFieldResolver interface {
	ResolveCustomFields(ctx context.Context, params Params) (Params, error)
}

// MandateService is the direct-debit backend: account validation, next
// possible collection date, and atomic mandate-plus-contribution
// creation.
type MandateService interface {
	VerifyIBAN(iban string) error
	VerifyBIC(bic string) error
	NextStartDate(ctx context.Context) (string, error)
	CreateMandate(ctx context.Context, req MandateRequest) (*Mandate, error)
}

// ContributionService is the direct-capture backend plus entity reads.
type ContributionService interface {
	CreateContribution(ctx context.Context, draft ContributionDraft) (*Contribution, error)
	GetContribution(ctx context.Context, id int) (*Contribution, error)
	GetRecurringContribution(ctx context.Context, id int) (*RecurringContribution, error)
}

// MembershipService creates, reloads, and patches membership records.
// Update is a distinct call from Create because the payment-contract
// linkage is only known after contribution-side work completes.
type MembershipService interface {
	CreateMembership(ctx context.Context, params Params) (int, error)
	GetMembership(ctx context.Context, id int) (*Membership, error)
	UpdateMembership(ctx context.Context, params Params) error
}

// GroupService flips a contact's membership in a group. Idempotent.
type GroupService interface {
	SetGroupStatus(ctx context.Context, groupID, contactID int, status string) (*GroupContact, error)
}

// ActivityService records activities (the failure-audit trail).
type ActivityService interface {
	CreateActivity(ctx context.Context, params ActivityParams) (*Activity, error)
}

// TransactionFrame controls the data-layer transaction wrapping the
// current request. ForceRollback undoes partial entity creation so a
// subsequent audit write survives alone.
type TransactionFrame interface {
	ForceRollback(ctx context.Context) error
}
