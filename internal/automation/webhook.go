package automation

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matchwell/growth-plane/internal/pkg/httpretry"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body, keyed by
// the webhook's configured secret. Receivers verify it to authenticate the
// sender.
const SignatureHeader = "X-Growth-Signature"

// HTTPWebhookSender delivers webhook payloads over HTTP with retries.
type HTTPWebhookSender struct {
	client httpretry.HTTPDoer
}

// NewHTTPWebhookSender creates a webhook sender. A nil client gets a retrying
// default with a 30s per-attempt timeout.
func NewHTTPWebhookSender(client httpretry.HTTPDoer) *HTTPWebhookSender {
	if client == nil {
		client = httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, 3)
	}
	return &HTTPWebhookSender{client: client}
}

// Send posts the payload body to the configured URL with the configured
// method and headers, signing the body when a secret is set. Non-2xx
// responses are errors so the queue's retry policy applies.
func (s *HTTPWebhookSender) Send(ctx context.Context, payload WebhookPayload) error {
	body, err := json.Marshal(payload.Body)
	if err != nil {
		return fmt.Errorf("marshal webhook body: %w", err)
	}

	method := payload.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, payload.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range payload.Headers {
		req.Header.Set(k, v)
	}
	if payload.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(payload.Secret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under the given secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
