package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matchwell/growth-plane/internal/domain"
	"github.com/matchwell/growth-plane/internal/segments"
)

// Enqueuer is the queue surface the trigger needs; satisfied by *Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobs ...*Job) error
}

// Trigger translates a membership transition into queued automation jobs
// according to the segment's configuration. It implements
// segments.AutomationTrigger.
type Trigger struct {
	queue Enqueuer
}

// NewTrigger creates a transition trigger writing to the given queue.
func NewTrigger(queue Enqueuer) *Trigger {
	return &Trigger{queue: queue}
}

// TriggerSegmentAutomations enqueues one job per configured integration
// whose trigger direction matches the transition. The membership row is
// already committed when this runs, so a retried job always sees consistent
// membership state.
func (t *Trigger) TriggerSegmentAutomations(ctx context.Context, person *domain.Person, seg *segments.Segment, dir segments.Direction) error {
	jobs, err := BuildJobs(person, seg, dir, time.Now().UTC())
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}
	return t.queue.Enqueue(ctx, jobs...)
}

// BuildJobs computes the jobs a transition produces. Pure; exported for the
// trigger and its tests.
func BuildJobs(person *domain.Person, seg *segments.Segment, dir segments.Direction, at time.Time) ([]*Job, error) {
	var jobs []*Job
	cfg := seg.Automations

	if ea := cfg.EmailAudience; ea != nil && ea.On == dir {
		if person.Email == "" {
			// Nothing to enroll without an email address.
		} else {
			payload, err := json.Marshal(EmailAudiencePayload{
				AudienceID: ea.AudienceID,
				Email:      person.Email,
				FirstName:  person.Traits.FirstName,
			})
			if err != nil {
				return nil, fmt.Errorf("marshal email audience payload: %w", err)
			}
			jobs = append(jobs, &Job{
				Kind: KindEmailAudience, PersonID: person.ID, SegmentID: seg.ID,
				Direction: dir, Payload: payload,
			})
		}
	}

	if aa := cfg.AdAudience; aa != nil && aa.On == dir && person.Email != "" {
		payload, err := json.Marshal(AdAudiencePayload{
			AudienceID: aa.AudienceID,
			Action:     aa.Action,
			Email:      person.Email,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal ad audience payload: %w", err)
		}
		jobs = append(jobs, &Job{
			Kind: KindAdAudience, PersonID: person.ID, SegmentID: seg.ID,
			Direction: dir, Payload: payload,
		})
	}

	if wh := cfg.Webhook; wh != nil && (wh.On == nil || *wh.On == dir) && wh.URL != "" {
		payload, err := json.Marshal(WebhookPayload{
			URL: wh.URL, Method: wh.Method, Headers: wh.Headers, Secret: wh.Secret,
			Body: WebhookBody{
				PersonID: person.ID, Email: person.Email, Phone: person.Phone,
				Name: person.Name, Traits: person.Traits,
				SegmentID: seg.ID, SegmentName: seg.Name,
				Direction: dir, At: at,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("marshal webhook payload: %w", err)
		}
		jobs = append(jobs, &Job{
			Kind: KindWebhook, PersonID: person.ID, SegmentID: seg.ID,
			Direction: dir, Payload: payload,
		})
	}

	return jobs, nil
}
