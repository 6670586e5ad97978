package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"provegapi/internal/crm/crmtest"
	"provegapi/internal/newsletter/handler"
	"provegapi/internal/newsletter/service"
	"provegapi/internal/platform/config"
	"provegapi/internal/platform/logger"
)

type NewsletterHandlerSuite struct {
	suite.Suite

	fake   *crmtest.Fake
	server *httptest.Server
}

func TestNewsletterHandler(t *testing.T) {
	suite.Run(t, new(NewsletterHandlerSuite))
}

func (s *NewsletterHandlerSuite) SetupTest() {
	s.fake = crmtest.New()
	log := logger.New(false)
	svc := service.New(config.Config{NewsletterGroupID: 1000}, s.fake, s.fake, service.WithLogger(log))
	s.server = httptest.NewServer(handler.NewHandler(svc, log).Routes())
}

func (s *NewsletterHandlerSuite) TearDownTest() {
	s.server.Close()
}

func (s *NewsletterHandlerSuite) post(body string) (int, map[string]any) {
	resp, err := http.Post(s.server.URL+"/submit", "application/json", strings.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()

	var envelope map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

func (s *NewsletterHandlerSuite) TestSubscribe() {
	status, envelope := s.post(`{"email": "erika@example.org", "newsletter": true}`)

	s.Equal(http.StatusOK, status)
	s.EqualValues(0, envelope["is_error"])

	values := envelope["values"].(map[string]any)
	s.EqualValues(1000, values["group_id"])
	s.Equal("Added", values["status"])
}

func (s *NewsletterHandlerSuite) TestNumericFlagAccepted() {
	status, envelope := s.post(`{"email": "erika@example.org", "newsletter": 0}`)

	s.Equal(http.StatusOK, status)
	s.EqualValues(0, envelope["is_error"])
	s.Equal("Removed", envelope["values"].(map[string]any)["status"])
}

func (s *NewsletterHandlerSuite) TestMissingNewsletterFlag() {
	status, envelope := s.post(`{"email": "erika@example.org"}`)

	s.Equal(http.StatusOK, status)
	s.EqualValues(1, envelope["is_error"])
	s.Equal("mandatory_missing", envelope["error_code"])
	s.Equal("Mandatory key(s) missing from params array: newsletter", envelope["error_message"])

	extra := envelope["extra"].(map[string]any)
	s.Equal("ProvegNewsletterSubscription", extra["entity"])
}

func (s *NewsletterHandlerSuite) TestMissingEmail() {
	status, envelope := s.post(`{"newsletter": 1}`)

	s.Equal(http.StatusOK, status)
	s.EqualValues(1, envelope["is_error"])
	s.Equal("mandatory_missing", envelope["error_code"])
	s.Equal("Mandatory key(s) missing from params array: email", envelope["error_message"])
}

func (s *NewsletterHandlerSuite) TestInvalidFlagRejected() {
	status, envelope := s.post(`{"email": "erika@example.org", "newsletter": "maybe"}`)

	s.Equal(http.StatusOK, status)
	s.EqualValues(1, envelope["is_error"])
	s.Equal("invalid_format", envelope["error_code"])
}
