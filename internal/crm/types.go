package crm

// Params is a loosely-typed parameter set for entity calls whose field
// names are only known at runtime, i.e. calls carrying custom-field
// aliases ("membership_info.membership_annual") that the custom-field
// resolver translates into internal identifiers before dispatch.
type Params map[string]any

// Clone returns a shallow copy so callers can resolve aliases without
// mutating the input.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ContactData is the identity record used to find or create a contact.
type ContactData struct {
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Email         string `json:"email,omitempty"`
	StreetAddress string `json:"street_address,omitempty"`
	City          string `json:"city,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	Country       string `json:"country,omitempty"`
	GenderID      string `json:"gender_id,omitempty"`
}

// ContributionDraft is the contribution data assembled during a
// submission. One-off contributions carry TotalAmount; recurring ones
// carry Amount plus the frequency fields instead.
type ContributionDraft struct {
	FinancialTypeID   int     `json:"financial_type_id"`
	CampaignID        int     `json:"campaign_id,omitempty"`
	ContactID         int     `json:"contact_id"`
	TotalAmount       float64 `json:"total_amount,omitempty"`
	Amount            float64 `json:"amount,omitempty"`
	FrequencyUnit     string  `json:"frequency_unit,omitempty"`
	FrequencyInterval int     `json:"frequency_interval,omitempty"`
	Source            string  `json:"source"`
	ReceiveDate       string  `json:"receive_date"`

	// Direct-capture only.
	PaymentInstrumentID  int    `json:"payment_instrument_id,omitempty"`
	ContributionStatusID string `json:"contribution_status_id,omitempty"`
}

// Contribution is a completed (or pending) one-off contribution record.
type Contribution struct {
	ID                   int     `json:"id"`
	ContactID            int     `json:"contact_id"`
	FinancialTypeID      int     `json:"financial_type_id"`
	CampaignID           int     `json:"campaign_id,omitempty"`
	TotalAmount          float64 `json:"total_amount"`
	Source               string  `json:"source"`
	ReceiveDate          string  `json:"receive_date"`
	PaymentInstrumentID  int     `json:"payment_instrument_id,omitempty"`
	ContributionStatusID string  `json:"contribution_status_id,omitempty"`
}

// RecurringContribution is a contribution schedule rather than a single
// payment.
type RecurringContribution struct {
	ID                int     `json:"id"`
	ContactID         int     `json:"contact_id"`
	CampaignID        int     `json:"campaign_id,omitempty"`
	Amount            float64 `json:"amount"`
	FrequencyUnit     string  `json:"frequency_unit"`
	FrequencyInterval int     `json:"frequency_interval"`
	Source            string  `json:"source"`
	StartDate         string  `json:"start_date,omitempty"`
}

// Mandate types: one-off collection vs. recurring collection.
const (
	MandateOneOff    = "OOFF"
	MandateRecurring = "RCUR"
)

// Entity tables a mandate can link to.
const (
	EntityContribution      = "civicrm_contribution"
	EntityContributionRecur = "civicrm_contribution_recur"
)

// MandateRequest asks the direct-debit backend to create a mandate and
// its linked contribution (one-off) or recurring contribution atomically.
type MandateRequest struct {
	Type          string  `json:"type"`
	IBAN          string  `json:"iban"`
	BIC           string  `json:"bic"`
	AccountHolder string  `json:"account_holder,omitempty"`
	CreditorID    int     `json:"creditor_id"`
	Amount        float64 `json:"amount"`
	StartDate     string  `json:"start_date"`

	Contribution ContributionDraft `json:"contribution"`
}

// Mandate is the created direct-debit authorization. EntityTable/EntityID
// point at the contribution record the backend created alongside it.
type Mandate struct {
	ID          int    `json:"id"`
	Reference   string `json:"reference,omitempty"`
	Type        string `json:"type"`
	IBAN        string `json:"iban"`
	BIC         string `json:"bic"`
	EntityTable string `json:"entity_table,omitempty"`
	EntityID    int    `json:"entity_id,omitempty"`
}

// Membership is a membership record reloaded after creation.
type Membership struct {
	ID               int    `json:"id"`
	ContactID        int    `json:"contact_id"`
	MembershipTypeID int    `json:"membership_type_id"`
	CampaignID       int    `json:"campaign_id,omitempty"`
	Source           string `json:"source,omitempty"`
	JoinDate         string `json:"join_date"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	Custom           Params `json:"custom,omitempty"`
}

// Group membership statuses. Setting a status is idempotent on the host
// platform: repeated calls with the same status converge.
const (
	GroupStatusAdded   = "Added"
	GroupStatusRemoved = "Removed"
)

// GroupContact is a contact's membership in a group.
type GroupContact struct {
	ID        int    `json:"id"`
	GroupID   int    `json:"group_id"`
	ContactID int    `json:"contact_id"`
	Status    string `json:"status"`
}

// ActivityParams describes an activity to record, used for the
// failure-audit trail.
type ActivityParams struct {
	AssigneeID       int    `json:"assignee_id,omitempty"`
	ActivityTypeID   string `json:"activity_type_id"`
	Subject          string `json:"subject"`
	ActivityDateTime string `json:"activity_date_time"`
	SourceContactID  int    `json:"source_contact_id,omitempty"`
	StatusID         string `json:"status_id"`
	TargetID         int    `json:"target_id,omitempty"`
	CampaignID       int    `json:"campaign_id,omitempty"`
	Details          string `json:"details"`
}

// Activity is a recorded activity.
type Activity struct {
	ID               int    `json:"id"`
	AssigneeID       int    `json:"assignee_id,omitempty"`
	ActivityTypeID   string `json:"activity_type_id"`
	Subject          string `json:"subject"`
	ActivityDateTime string `json:"activity_date_time"`
	SourceContactID  int    `json:"source_contact_id,omitempty"`
	StatusID         string `json:"status_id"`
	TargetID         int    `json:"target_id,omitempty"`
	CampaignID       int    `json:"campaign_id,omitempty"`
	Details          string `json:"details"`
}
