package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"provegapi/internal/crm"
	"provegapi/internal/crm/rest"
	"provegapi/internal/platform/config"
	"provegapi/pkg/apierrors"
	"provegapi/pkg/requestcontext"
)

// platformStub emulates the host's entity/action dispatch. Each test
// registers handlers keyed by "Entity.action".
type platformStub struct {
	handlers map[string]func(params map[string]any) any
	calls    atomic.Int64
	lastAuth [2]string
}

func newPlatformStub() *platformStub {
	return &platformStub{handlers: map[string]func(map[string]any) any{}}
}

func (p *platformStub) on(key string, fn func(params map[string]any) any) {
	p.handlers[key] = fn
}

func (p *platformStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.calls.Add(1)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.lastAuth = [2]string{r.PostFormValue("api_key"), r.PostFormValue("key")}

	var params map[string]any
	_ = json.Unmarshal([]byte(r.PostFormValue("json")), &params)

	key := r.PostFormValue("entity") + "." + r.PostFormValue("action")
	fn, ok := p.handlers[key]
	if !ok {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"is_error":      1,
			"error_message": "unknown action " + key,
			"error_code":    "not_implemented",
		})
		return
	}
	_ = json.NewEncoder(w).Encode(fn(params))
}

type RestClientSuite struct {
	suite.Suite

	stub   *platformStub
	server *httptest.Server
	client *rest.Client
	ctx    context.Context
}

func TestRestClient(t *testing.T) {
	suite.Run(t, new(RestClientSuite))
}

func (s *RestClientSuite) SetupTest() {
	s.stub = newPlatformStub()
	s.server = httptest.NewServer(s.stub)
	s.client = rest.New(config.Config{
		CRMBaseURL: s.server.URL,
		CRMAPIKey:  "user-key",
		CRMSiteKey: "site-key",
	})
	s.ctx = context.Background()
}

func (s *RestClientSuite) TearDownTest() {
	s.server.Close()
}

func success(values any) map[string]any {
	return map[string]any{"is_error": 0, "values": values}
}

func (s *RestClientSuite) TestAuthParamsSent() {
	s.stub.on("Contact.get", func(map[string]any) any {
		return map[string]any{"is_error": 0, "count": 0}
	})
	s.stub.on("Contact.create", func(map[string]any) any {
		return map[string]any{"is_error": 0, "id": 5}
	})

	_, err := s.client.GetOrCreateContact(s.ctx, "Individual", crm.ContactData{Email: "a@b.c"})
	s.Require().NoError(err)
	s.Equal([2]string{"user-key", "site-key"}, s.stub.lastAuth)
}

func (s *RestClientSuite) TestGetOrCreateContactMatchesExisting() {
	s.stub.on("Contact.get", func(params map[string]any) any {
		s.Equal("erika@example.org", params["email"])
		return map[string]any{
			"is_error": 0, "count": 1, "id": "17",
			"values": map[string]any{"17": map[string]any{"id": "17"}},
		}
	})

	id, err := s.client.GetOrCreateContact(s.ctx, "Individual", crm.ContactData{Email: "erika@example.org"})
	s.Require().NoError(err)
	s.Equal(17, id)
}

func (s *RestClientSuite) TestGetOrCreateContactCreates() {
	s.stub.on("Contact.get", func(map[string]any) any {
		return map[string]any{"is_error": 0, "count": 0}
	})
	s.stub.on("Contact.create", func(params map[string]any) any {
		s.Equal("Erika", params["first_name"])
		s.Equal("1", params["gender_id"])
		return map[string]any{"is_error": 0, "id": 23}
	})

	id, err := s.client.GetOrCreateContact(s.ctx, "Individual", crm.ContactData{
		FirstName: "Erika", Email: "erika@example.org", GenderID: "1",
	})
	s.Require().NoError(err)
	s.Equal(23, id)
}

func (s *RestClientSuite) TestPlatformErrorCarriesCode() {
	s.stub.on("Campaign.getsingle", func(map[string]any) any {
		return map[string]any{
			"is_error":      1,
			"error_message": "Expected one Campaign but found 0",
			"error_code":    "invalid_format",
		}
	})

	_, err := s.client.CampaignFromCode(s.ctx, "NOPE")
	s.Require().Error(err)
	s.True(apierrors.HasCode(err, apierrors.CodeInvalidFormat))
}

func (s *RestClientSuite) TestOptionValues() {
	s.stub.on("OptionValue.get", func(params map[string]any) any {
		s.Equal("gender", params["option_group_id"])
		return success(map[string]any{
			"10": map[string]any{"value": "1", "name": "Female"},
			"11": map[string]any{"value": "2", "name": "Male"},
		})
	})

	values, err := s.client.OptionValues(s.ctx, "gender")
	s.Require().NoError(err)
	s.Equal(map[string]string{"1": "Female", "2": "Male"}, values)
}

func (s *RestClientSuite) TestCustomFieldResolutionCached() {
	s.stub.on("CustomField.getsingle", func(params map[string]any) any {
		s.Equal("membership_info", params["custom_group_id"])
		s.Equal("membership_annual", params["name"])
		return success(map[string]any{"201": map[string]any{"id": "201"}})
	})

	params := crm.Params{"membership_info.membership_annual": 144.0, "contact_id": 5}
	resolved, err := s.client.ResolveCustomFields(s.ctx, params)
	s.Require().NoError(err)
	s.Equal(144.0, resolved["custom_201"])
	s.Equal(5, resolved["contact_id"].(int))

	before := s.stub.calls.Load()
	_, err = s.client.ResolveCustomFields(s.ctx, params)
	s.Require().NoError(err)
	s.Equal(before, s.stub.calls.Load(), "second resolution must hit the cache")
}

func (s *RestClientSuite) TestNextStartDate() {
	ctx := requestcontext.WithTime(s.ctx, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))

	date, err := s.client.NextStartDate(ctx)
	s.Require().NoError(err)
	s.Equal("2026-08-31", date)
}

func (s *RestClientSuite) TestCreateMandate() {
	s.stub.on("SepaMandate.createfull", func(params map[string]any) any {
		s.Equal("RCUR", params["type"])
		s.Equal("DE89370400440532013000", params["iban"])
		s.Equal("20260115083000", params["receive_date"])
		s.NotContains(params, "total_amount")
		return success(map[string]any{"3": map[string]any{
			"id":           "3",
			"reference":    "TEST-0003",
			"type":         "RCUR",
			"entity_table": "civicrm_contribution_recur",
			"entity_id":    "9",
		}})
	})

	mandate, err := s.client.CreateMandate(s.ctx, crm.MandateRequest{
		Type: crm.MandateRecurring,
		IBAN: "DE89370400440532013000",
		BIC:  "GENODEM1GLS",
		Contribution: crm.ContributionDraft{
			ReceiveDate: "20260115083000",
		},
	})
	s.Require().NoError(err)
	s.Equal(3, mandate.ID)
	s.Equal(crm.EntityContributionRecur, mandate.EntityTable)
	s.Equal(9, mandate.EntityID)
}

func (s *RestClientSuite) TestCreateMandateOneOffCarriesTotalAmount() {
	s.stub.on("SepaMandate.createfull", func(params map[string]any) any {
		s.Equal("OOFF", params["type"])
		s.EqualValues(50, params["total_amount"])
		s.Equal("20260115083000", params["receive_date"])
		return success(map[string]any{"4": map[string]any{
			"id":           "4",
			"type":         "OOFF",
			"entity_table": "civicrm_contribution",
			"entity_id":    "12",
		}})
	})

	mandate, err := s.client.CreateMandate(s.ctx, crm.MandateRequest{
		Type:   crm.MandateOneOff,
		IBAN:   "DE89370400440532013000",
		BIC:    "GENODEM1GLS",
		Amount: 50,
		Contribution: crm.ContributionDraft{
			TotalAmount: 50,
			ReceiveDate: "20260115083000",
		},
	})
	s.Require().NoError(err)
	s.Equal(crm.EntityContribution, mandate.EntityTable)
	s.Equal(12, mandate.EntityID)
}

func (s *RestClientSuite) TestGetContributionCoercesStrings() {
	s.stub.on("Contribution.getsingle", func(map[string]any) any {
		return success(map[string]any{"7": map[string]any{
			"id":           "7",
			"contact_id":   "17",
			"total_amount": "50.00",
			"source":       "ProVeg API",
		}})
	})

	contribution, err := s.client.GetContribution(s.ctx, 7)
	s.Require().NoError(err)
	s.Equal(7, contribution.ID)
	s.Equal(17, contribution.ContactID)
	s.Equal(50.0, contribution.TotalAmount)
}

func (s *RestClientSuite) TestGetRecurringContribution() {
	s.stub.on("ContributionRecur.getsingle", func(map[string]any) any {
		return success(map[string]any{"9": map[string]any{
			"id":                 "9",
			"amount":             "12.00",
			"frequency_unit":     "month",
			"frequency_interval": "1",
		}})
	})

	recurring, err := s.client.GetRecurringContribution(s.ctx, 9)
	s.Require().NoError(err)
	s.Equal("month", recurring.FrequencyUnit)
	s.Equal(1, recurring.FrequencyInterval)
	s.Equal(12.0, recurring.Amount)
}

func (s *RestClientSuite) TestMembershipCustomFieldsPreserved() {
	s.stub.on("Membership.getsingle", func(map[string]any) any {
		return success(map[string]any{"4": map[string]any{
			"id":         "4",
			"contact_id": "17",
			"start_date": "2026-09-01",
			"end_date":   "2027-08-31",
			"custom_201": "144",
		}})
	})

	membership, err := s.client.GetMembership(s.ctx, 4)
	s.Require().NoError(err)
	s.Equal("2027-08-31", membership.EndDate)
	s.Equal("144", membership.Custom["custom_201"])
}

func (s *RestClientSuite) TestSetGroupStatus() {
	s.stub.on("GroupContact.create", func(params map[string]any) any {
		s.Equal("Added", params["status"])
		return map[string]any{"is_error": 0, "added": 1}
	})

	gc, err := s.client.SetGroupStatus(s.ctx, 1000, 17, crm.GroupStatusAdded)
	s.Require().NoError(err)
	s.Equal(1000, gc.GroupID)
	s.Equal(17, gc.ContactID)
	s.Equal(crm.GroupStatusAdded, gc.Status)
}

func (s *RestClientSuite) TestCreateActivity() {
	s.stub.on("Activity.create", func(params map[string]any) any {
		s.Equal("Failed ProVeg API contribution processing", params["subject"])
		return map[string]any{"is_error": 0, "id": 88}
	})

	activity, err := s.client.CreateActivity(s.ctx, crm.ActivityParams{
		ActivityTypeID: "61",
		Subject:        "Failed ProVeg API contribution processing",
		StatusID:       "1",
	})
	s.Require().NoError(err)
	s.Equal(88, activity.ID)
}

func (s *RestClientSuite) TestUnreachablePlatform() {
	s.server.Close()

	_, err := s.client.GetContribution(s.ctx, 1)
	s.Require().Error(err)
}
