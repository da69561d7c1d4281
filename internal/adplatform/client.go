package adplatform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matchwell/growth-plane/internal/pkg/httpretry"
)

// standardEventNames maps internal event names to the taxonomy the ad
// platform scores on. Unmapped events are sent under their internal name.
var standardEventNames = map[string]string{
	"account_created":        "CompleteRegistration",
	"profile_completed":      "SubmitApplication",
	"verification_completed": "SubmitApplication",
	"pricing_view":           "ViewContent",
	"pricing_page_viewed":    "ViewContent",
	"date_request_created":   "InitiateCheckout",
	"payment_completed":      "Purchase",
	"subscription_started":   "Subscribe",
}

// StandardEventName returns the platform taxonomy name for an internal
// event, falling back to the internal name itself.
func StandardEventName(internal string) string {
	if mapped, ok := standardEventNames[internal]; ok {
		return mapped
	}
	return internal
}

// Conversion is one server-side conversion to report. Email and Phone are
// raw values; the client hashes them before transmission.
type Conversion struct {
	EventName   string
	EventID     string
	OccurredAt  time.Time
	Email       string
	Phone       string
	FirstName   string
	City        string
	IPAddress   string
	UserAgent   string
	AmountCents int64
	Currency    string
	ClickID     string
	BrowserID   string
	Campaign    string
}

// Client is the ad platform API client.
type Client struct {
	baseURL    string
	apiKey     string
	accountID  string
	httpClient httpretry.HTTPDoer
}

// NewClient creates an ad platform client with a retrying HTTP transport.
func NewClient(config Config) *Client {
	return &Client{
		baseURL:   config.BaseURL,
		apiKey:    config.APIKey,
		accountID: config.AccountID,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 30 * time.Second,
		}, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// SendConversion reports a conversion with hashed match keys. The event ID
// doubles as the platform-side dedup key, so resending the same conversion
// is safe.
func (c *Client) SendConversion(ctx context.Context, conv Conversion) (*ConversionResponse, error) {
	if conv.EventID == "" {
		return nil, fmt.Errorf("conversion requires a dedup event id")
	}

	request := ConversionRequest{
		AccountID: c.accountID,
		EventName: StandardEventName(conv.EventName),
		EventTime: conv.OccurredAt.Unix(),
		EventID:   conv.EventID,
		ActionSrc: "server",
		UserData: ConversionUserData{
			HashedEmail:     HashIdentifier(conv.Email),
			HashedPhone:     HashPhone(conv.Phone),
			HashedFirstName: HashIdentifier(conv.FirstName),
			HashedCity:      HashIdentifier(conv.City),
			IPAddress:       conv.IPAddress,
			UserAgent:       conv.UserAgent,
		},
		ValueCents:  conv.AmountCents,
		Currency:    conv.Currency,
		ClickID:     conv.ClickID,
		BrowserID:   conv.BrowserID,
		CampaignTag: conv.Campaign,
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/v2/conversions", request)
	if err != nil {
		return nil, err
	}

	var response ConversionResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse conversion response: %w", err)
	}
	return &response, nil
}

// AddToAudience adds a hashed email to a custom audience.
func (c *Client) AddToAudience(ctx context.Context, audienceID, email string) error {
	return c.mutateAudience(ctx, http.MethodPost, audienceID, email)
}

// RemoveFromAudience removes a hashed email from a custom audience.
func (c *Client) RemoveFromAudience(ctx context.Context, audienceID, email string) error {
	return c.mutateAudience(ctx, http.MethodDelete, audienceID, email)
}

func (c *Client) mutateAudience(ctx context.Context, method, audienceID, email string) error {
	hashed := HashIdentifier(email)
	if hashed == "" {
		return fmt.Errorf("audience mutation requires an email")
	}

	request := audienceRequest{
		AccountID: c.accountID,
		Schema:    "EMAIL_SHA256",
		Data:      []string{hashed},
	}

	endpoint := fmt.Sprintf("/v2/audiences/%s/users", audienceID)
	_, err := c.doRequest(ctx, method, endpoint, request)
	return err
}

// doRequest performs an authenticated request to the ad platform API.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	reqURL := fmt.Sprintf("%s%s", c.baseURL, endpoint)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
