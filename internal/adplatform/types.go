package adplatform

// Config holds ad platform API credentials and settings.
type Config struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	AccountID string `yaml:"account_id"`
	Enabled   bool   `yaml:"enabled"`
}

// ConversionRequest is the conversions API payload. User identifiers are
// pre-hashed.
type ConversionRequest struct {
	AccountID   string             `json:"account_id"`
	EventName   string             `json:"event_name"`
	EventTime   int64              `json:"event_time"`
	EventID     string             `json:"event_id"` // dedup key, echoed by the platform
	ActionSrc   string             `json:"action_source"`
	UserData    ConversionUserData `json:"user_data"`
	ValueCents  int64              `json:"value_cents,omitempty"`
	Currency    string             `json:"currency,omitempty"`
	ClickID     string             `json:"click_id,omitempty"`
	BrowserID   string             `json:"browser_id,omitempty"`
	CampaignTag string             `json:"campaign,omitempty"`
}

// ConversionUserData carries hashed match keys.
type ConversionUserData struct {
	HashedEmail     string `json:"em,omitempty"`
	HashedPhone     string `json:"ph,omitempty"`
	HashedFirstName string `json:"fn,omitempty"`
	HashedCity      string `json:"ct,omitempty"`
	IPAddress       string `json:"client_ip_address,omitempty"`
	UserAgent       string `json:"client_user_agent,omitempty"`
}

// ConversionResponse is the conversions API reply.
type ConversionResponse struct {
	EventsReceived int    `json:"events_received"`
	TraceID        string `json:"fbtrace_id,omitempty"`
}

// audienceRequest mutates custom audience membership by hashed email.
type audienceRequest struct {
	AccountID string   `json:"account_id"`
	Schema    string   `json:"schema"`
	Data      []string `json:"data"`
}
