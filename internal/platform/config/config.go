package config

import (
	"os"
	"strconv"
)

// Config carries all recognized settings. It is built once in main and
// injected into the services; nothing reads the environment after startup.
type Config struct {
	// Server
	Addr     string
	APIToken string

	// Host CRM connection
	CRMBaseURL string
	CRMAPIKey  string
	CRMSiteKey string

	// Debug toggle: when on, the operations log raw requests and key
	// intermediate payloads to the diagnostic log.
	LoggingEnabled bool

	// The contact the API operations act as (source of audit activities).
	ActorContactID int

	// Submission settings
	FinancialTypeID              int
	SEPACreditorID               int
	PayPalInstrumentID           int
	NewsletterGroupID            int
	FailedContributionAssigneeID int

	// Fallback for the contribution source when the caller sends none.
	DefaultContributionSource string

	// Days between submission and the first possible collection date.
	MandateNoticeDays int
}

// FromEnv builds a Config from environment variables so main stays lean.
// Defaults match the original deployment: financial type 1, creditor 1,
// PayPal instrument 12, newsletter group 1000.
func FromEnv() Config {
	return Config{
		Addr:           envString("PROVEGAPI_ADDR", ":8080"),
		APIToken:       os.Getenv("PROVEGAPI_TOKEN"),
		CRMBaseURL:     envString("PROVEGAPI_CRM_URL", "http://localhost/civicrm"),
		CRMAPIKey:      os.Getenv("PROVEGAPI_CRM_API_KEY"),
		CRMSiteKey:     os.Getenv("PROVEGAPI_CRM_SITE_KEY"),
		LoggingEnabled: os.Getenv("PROVEGAPI_LOGGING") == "true",
		ActorContactID: envInt("PROVEGAPI_ACTOR_CONTACT_ID", 0),

		FinancialTypeID:              envInt("PROVEGAPI_FINANCIAL_TYPE_ID", 1),
		SEPACreditorID:               envInt("PROVEGAPI_SEPA_CREDITOR_ID", 1),
		PayPalInstrumentID:           envInt("PROVEGAPI_PAYPAL_INSTRUMENT_ID", 12),
		NewsletterGroupID:            envInt("PROVEGAPI_NEWSLETTER_GROUP_ID", 1000),
		FailedContributionAssigneeID: envInt("PROVEGAPI_FAILED_CONTRIBUTION_ASSIGNEE_ID", 0),

		DefaultContributionSource: envString("PROVEGAPI_CONTRIBUTION_SOURCE", "ProVeg API"),
		MandateNoticeDays:         envInt("PROVEGAPI_MANDATE_NOTICE_DAYS", 2),
	}
}

// Source applies the source-resolution rule: the caller-supplied value
// wins, otherwise the configured default.
func (c Config) Source(override string) string {
	if override != "" {
		return override
	}
	return c.DefaultContributionSource
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
