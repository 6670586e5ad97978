package handler

import (
	"strings"

	"provegapi/internal/donation/models"
	"provegapi/pkg/apierrors"
	"provegapi/pkg/platform/httputil"
)

// submitRequest is the wire form of a donation submission. Mandatory
// fields are pointers so that absent keys can be told apart from zero
// values before the request is handed to the service.
type submitRequest struct {
	FirstName         *string `json:"first_name"`
	LastName          *string `json:"last_name"`
	Email             *string `json:"email"`
	StreetAddress     *string `json:"street_address"`
	PostalCode        *string `json:"postal_code"`
	City              *string `json:"city"`
	Country           *string `json:"country"`
	Amount            *int    `json:"amount"`
	Frequency         *int    `json:"frequency"`
	PaymentInstrument *string `json:"payment_instrument_id"`

	Gender              string            `json:"gender"`
	IBAN                string            `json:"iban"`
	BIC                 string            `json:"bic"`
	AccountHolder       string            `json:"account_holder"`
	ReceiveDate         int64             `json:"receive_date"`
	MembershipTypeID    int               `json:"membership_type_id"`
	MembershipSubtypeID int               `json:"membership_subtype_id"`
	Newsletter          httputil.BoolFlag `json:"newsletter"`
	CampaignID          int               `json:"campaign_id"`
	CampaignCode        string            `json:"campaign_code"`
	ContributionSource  string            `json:"contribution_source"`
}

// missingFields returns the mandatory keys absent from the request, in
// declaration order.
func (r *submitRequest) missingFields() []string {
	var missing []string
	check := func(name string, present bool) {
		if !present {
			missing = append(missing, name)
		}
	}
	check("amount", r.Amount != nil)
	check("frequency", r.Frequency != nil)
	check("first_name", r.FirstName != nil)
	check("last_name", r.LastName != nil)
	check("email", r.Email != nil)
	check("street_address", r.StreetAddress != nil)
	check("postal_code", r.PostalCode != nil)
	check("city", r.City != nil)
	check("country", r.Country != nil)
	check("payment_instrument_id", r.PaymentInstrument != nil)
	return missing
}

func mandatoryMissing(entity string, fields []string) *apierrors.Error {
	return apierrors.Newf(apierrors.CodeMandatoryMissing,
		"Mandatory key(s) missing from params array: %s", strings.Join(fields, ", ")).
		WithExtra("fields", fields).
		WithExtra("entity", entity).
		WithExtra("action", "submit")
}

// toModel converts the validated wire request. Must only be called after
// missingFields returned empty.
func (r *submitRequest) toModel() models.SubmissionRequest {
	return models.SubmissionRequest{
		FirstName:     *r.FirstName,
		LastName:      *r.LastName,
		Email:         *r.Email,
		StreetAddress: *r.StreetAddress,
		City:          *r.City,
		PostalCode:    *r.PostalCode,
		Country:       *r.Country,
		Gender:        r.Gender,

		Amount:            *r.Amount,
		Frequency:         *r.Frequency,
		PaymentInstrument: *r.PaymentInstrument,
		IBAN:              r.IBAN,
		BIC:               r.BIC,
		AccountHolder:     r.AccountHolder,
		ReceiveDate:       r.ReceiveDate,

		MembershipTypeID:    r.MembershipTypeID,
		MembershipSubtypeID: r.MembershipSubtypeID,
		Newsletter:          bool(r.Newsletter),

		CampaignID:         r.CampaignID,
		CampaignCode:       r.CampaignCode,
		ContributionSource: r.ContributionSource,
	}
}
