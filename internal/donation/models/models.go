package models

// Payment instruments accepted by the donation operation. The wire values
// are the processor names the callers have always sent.
const (
	InstrumentDirectDebit   = "sepa"
	InstrumentDirectCapture = "paypal"
)

// SubmissionRequest is a donation submission. Amount is in minor currency
// units (cents); Frequency is installments per year, 0 for one-off.
type SubmissionRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
	Gender        string `json:"gender,omitempty"`

	Amount            int    `json:"amount"`
	Frequency         int    `json:"frequency"`
	PaymentInstrument string `json:"payment_instrument_id"`
	IBAN              string `json:"iban,omitempty"`
	BIC               string `json:"bic,omitempty"`
	AccountHolder     string `json:"account_holder,omitempty"`
	ReceiveDate       int64  `json:"receive_date,omitempty"`

	MembershipTypeID    int  `json:"membership_type_id,omitempty"`
	MembershipSubtypeID int  `json:"membership_subtype_id,omitempty"`
	Newsletter          bool `json:"newsletter,omitempty"`

	CampaignID         int    `json:"campaign_id,omitempty"`
	CampaignCode       string `json:"campaign_code,omitempty"`
	ContributionSource string `json:"contribution_source,omitempty"`
}

// SubmissionResult is the successful outcome: the primary created record
// (a Contribution or RecurringContribution; nil when the mandate carried
// no entity link) plus auxiliary outputs. Membership output is
// deliberately withheld from the response.
type SubmissionResult struct {
	Values any
	Extra  map[string]any
}
