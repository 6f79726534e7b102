package adapters

import (
	"time"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/auth"
	"github.com/opengovern/tentacles/webhook"
)

const (
	CertnName            = "certn"
	CertnBaseURL         = "https://demo-api.certn.co"
	CertnSignatureHeader = "Certn-Signature"

	CertnDefaultMinuteMaxRequests = 240
	CertnDefaultDayMaxRequests    = 14400
)

// CertnRequestFlags are the request_* booleans of an application payload in
// the order they are checked when deriving the event type.
var CertnRequestFlags = []string{
	"request_identity_verification",
	"request_equifax",
	"request_base",
	"request_instant_verify_employment",
	"request_instant_verify_education",
	"request_instant_verify_credential",
	"request_international_criminal_record_check",
	"request_enhanced_identity_verification",
	"request_motor_vehicle_records",
	"request_criminal_record_check",
	"request_enhanced_criminal_record_check",
	"request_vulnerable_sector_criminal_record_check",
	"request_employer_references",
	"request_address_references",
	"request_employer_phone_references",
	"request_address_phone_references",
	"request_softcheck",
	"request_social_media_check",
	"request_soquij",
	"request_us_criminal_record_check_tier_1",
	"request_us_criminal_record_check_tier_2",
	"request_us_criminal_record_check_tier_3",
	"request_education_verification",
	"request_credential_verification",
	"request_employment_verification",
	"request_vaccination_check",
	"request_australian_criminal_intelligence_commission_check",
	"request_right_to_work",
	"request_uk_basic_dbs_check",
}

func CertnLimits() tentacles.Limits {
	return tentacles.Limits{
		Read: []tentacles.Window{
			{Name: "minute", Limit: CertnDefaultMinuteMaxRequests, Duration: time.Minute},
			{Name: "day", Limit: CertnDefaultDayMaxRequests, Duration: 24 * time.Hour},
		},
	}
}

// Certn wraps the HR applicants API.
type Certn struct {
	*tentacles.Client
	Applications *tentacles.Resource
}

// NewCertn reads the key from settings or CERTN_API_KEY.
func NewCertn(o Options) (*Certn, error) {
	ps := o.settings().Provider(CertnName)
	key, err := auth.NewBearerKey(ps.APIKey, "CERTN_API_KEY")
	if err != nil {
		return nil, err
	}
	client, err := o.newClient(tentacles.ProviderConfig{
		Name:       CertnName,
		BaseURL:    CertnBaseURL,
		Limits:     CertnLimits(),
		Pagination: tentacles.PaginationPageSize,
	}, key)
	if err != nil {
		return nil, err
	}
	return &Certn{
		Client: client,
		Applications: tentacles.NewResource(client, tentacles.ResourceConfig{
			Path:          "/hr/v1/applicants/",
			TrailingSlash: true,
		}),
	}, nil
}

// NewCertnWebhook names events after the first request_* flag that is set.
func NewCertnWebhook(o Options) (*webhook.Engine, webhook.ListenerConfig, error) {
	engine, err := o.newEngine(webhook.Config{
		Provider:  CertnName,
		EventType: webhook.FlagEventType("request_", CertnRequestFlags...),
		Validate:  webhook.RequireFields("id"),
	})
	if err != nil {
		return nil, webhook.ListenerConfig{}, err
	}
	return engine, webhook.ListenerConfig{SignatureHeader: CertnSignatureHeader, Logger: o.logger()}, nil
}
