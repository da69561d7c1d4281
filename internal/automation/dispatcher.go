package automation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/matchwell/growth-plane/internal/segments"
)

// EmailAudienceClient enrolls contacts into an email-marketing audience.
// Implemented by emailaudience.Client.
type EmailAudienceClient interface {
	AddContact(ctx context.Context, audienceID, email, firstName string) error
}

// AdAudienceClient manages ad-platform custom audience membership.
// Implemented by adplatform.Client.
type AdAudienceClient interface {
	AddToAudience(ctx context.Context, audienceID, email string) error
	RemoveFromAudience(ctx context.Context, audienceID, email string) error
}

// WebhookSender delivers a signed webhook payload.
type WebhookSender interface {
	Send(ctx context.Context, payload WebhookPayload) error
}

// Dispatcher executes claimed jobs against the configured integrations.
// Any client may be nil; jobs for an unconfigured integration fail and
// eventually dead-letter rather than silently succeeding.
type Dispatcher struct {
	email   EmailAudienceClient
	ads     AdAudienceClient
	webhook WebhookSender
}

// NewDispatcher creates a dispatcher over the given integration clients.
func NewDispatcher(email EmailAudienceClient, ads AdAudienceClient, webhook WebhookSender) *Dispatcher {
	return &Dispatcher{email: email, ads: ads, webhook: webhook}
}

// Dispatch executes one job. The caller owns status transitions.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindEmailAudience:
		if d.email == nil {
			return fmt.Errorf("email audience integration not configured")
		}
		var p EmailAudiencePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decode email audience payload: %w", err)
		}
		return d.email.AddContact(ctx, p.AudienceID, p.Email, p.FirstName)

	case KindAdAudience:
		if d.ads == nil {
			return fmt.Errorf("ad audience integration not configured")
		}
		var p AdAudiencePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decode ad audience payload: %w", err)
		}
		if p.Action == segments.AudienceRemove {
			return d.ads.RemoveFromAudience(ctx, p.AudienceID, p.Email)
		}
		return d.ads.AddToAudience(ctx, p.AudienceID, p.Email)

	case KindWebhook:
		if d.webhook == nil {
			return fmt.Errorf("webhook sender not configured")
		}
		var p WebhookPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decode webhook payload: %w", err)
		}
		return d.webhook.Send(ctx, p)

	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}
