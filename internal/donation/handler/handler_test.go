package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"provegapi/internal/crm/crmtest"
	"provegapi/internal/donation/handler"
	"provegapi/internal/donation/service"
	newslettersvc "provegapi/internal/newsletter/service"
	"provegapi/internal/platform/config"
	"provegapi/internal/platform/logger"
)

type DonationHandlerSuite struct {
	suite.Suite

	fake   *crmtest.Fake
	server *httptest.Server
}

func TestDonationHandler(t *testing.T) {
	suite.Run(t, new(DonationHandlerSuite))
}

func (s *DonationHandlerSuite) SetupTest() {
	s.fake = crmtest.New()
	cfg := config.Config{DefaultContributionSource: "ProVeg API"}
	log := logger.New(false)

	newsletter := newslettersvc.New(cfg, s.fake, s.fake, newslettersvc.WithLogger(log))
	svc := service.New(cfg, service.Platform{
		Contacts:      s.fake,
		Campaigns:     s.fake,
		Options:       s.fake,
		CustomFields:  s.fake,
		Mandates:      s.fake,
		Contributions: s.fake,
		Memberships:   s.fake,
		Activities:    s.fake,
		Tx:            s.fake,
	}, newsletter, service.WithLogger(log))

	s.server = httptest.NewServer(handler.NewHandler(svc, log).Routes())
}

func (s *DonationHandlerSuite) TearDownTest() {
	s.server.Close()
}

func (s *DonationHandlerSuite) post(body string) (int, map[string]any) {
	resp, err := http.Post(s.server.URL+"/submit", "application/json", strings.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()

	var envelope map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

func validBody() string {
	return `{
		"first_name": "Erika",
		"last_name": "Mustermann",
		"email": "erika@example.org",
		"street_address": "Musterstr. 1",
		"postal_code": "10115",
		"city": "Berlin",
		"country": "DE",
		"amount": 5000,
		"frequency": 0,
		"payment_instrument_id": "paypal"
	}`
}

func (s *DonationHandlerSuite) TestSubmitSuccess() {
	status, envelope := s.post(validBody())

	s.Equal(http.StatusOK, status)
	s.EqualValues(0, envelope["is_error"])

	values, ok := envelope["values"].(map[string]any)
	s.Require().True(ok, "expected contribution values, got %T", envelope["values"])
	s.EqualValues(50, values["total_amount"])
	s.Equal("Completed", values["contribution_status_id"])

	echo, ok := envelope["request"].(map[string]any)
	s.Require().True(ok, "expected the request to be echoed")
	s.Equal("erika@example.org", echo["email"])
	s.EqualValues(5000, echo["amount"])
}

func (s *DonationHandlerSuite) TestMissingMandatoryFields() {
	status, envelope := s.post(`{"email": "erika@example.org", "amount": 5000}`)

	s.Equal(http.StatusOK, status)
	s.EqualValues(1, envelope["is_error"])
	s.Equal("mandatory_missing", envelope["error_code"])
	s.Equal("Mandatory key(s) missing from params array: frequency, first_name, last_name, street_address, postal_code, city, country, payment_instrument_id",
		envelope["error_message"])

	extra := envelope["extra"].(map[string]any)
	s.Equal("ProvegDonation", extra["entity"])
	s.Equal("submit", extra["action"])
	s.Len(extra["fields"], 8)
}

func (s *DonationHandlerSuite) TestMalformedBody() {
	status, envelope := s.post(`{"amount": `)

	s.Equal(http.StatusOK, status)
	s.EqualValues(1, envelope["is_error"])
	s.Equal("invalid_format", envelope["error_code"])
	s.Equal("Could not parse request body.", envelope["error_message"])
}

func (s *DonationHandlerSuite) TestOperationErrorKeepsHTTP200() {
	body := strings.Replace(validBody(), `"payment_instrument_id": "paypal"`,
		`"payment_instrument_id": "cheque"`, 1)
	status, envelope := s.post(body)

	s.Equal(http.StatusOK, status)
	s.EqualValues(1, envelope["is_error"])
	s.Equal("invalid_format", envelope["error_code"])
	s.Equal("Invalid payment instrument.", envelope["error_message"])

	// The failure audit runs even for handler-reachable operation errors.
	s.Len(s.fake.Activities, 1)
}

func (s *DonationHandlerSuite) TestNumericNewsletterFlagAccepted() {
	body := strings.Replace(validBody(), `"amount": 5000`,
		`"amount": 5000, "newsletter": 1`, 1)
	status, envelope := s.post(body)

	s.Equal(http.StatusOK, status)
	s.EqualValues(0, envelope["is_error"])

	extra, ok := envelope["extra"].(map[string]any)
	s.Require().True(ok, "numeric newsletter flag must subscribe the contact")
	subscription, ok := extra["ProvegNewsletterSubscription"].(map[string]any)
	s.Require().True(ok)
	s.Equal("Added", subscription["status"])
}

func (s *DonationHandlerSuite) TestStringNewsletterFlagAccepted() {
	body := strings.Replace(validBody(), `"amount": 5000`,
		`"amount": 5000, "newsletter": "0"`, 1)
	status, envelope := s.post(body)

	s.Equal(http.StatusOK, status)
	s.EqualValues(0, envelope["is_error"])
	s.Nil(envelope["extra"], "an unset flag must not subscribe the contact")
}

func (s *DonationHandlerSuite) TestNewsletterExtraInEnvelope() {
	body := strings.Replace(validBody(), `"amount": 5000`,
		`"amount": 5000, "newsletter": true`, 1)
	status, envelope := s.post(body)

	s.Equal(http.StatusOK, status)
	s.EqualValues(0, envelope["is_error"])

	extra, ok := envelope["extra"].(map[string]any)
	s.Require().True(ok)
	subscription, ok := extra["ProvegNewsletterSubscription"].(map[string]any)
	s.Require().True(ok)
	s.Equal("Added", subscription["status"])
}
