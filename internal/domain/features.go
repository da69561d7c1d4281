package domain

import (
	"time"

	"github.com/google/uuid"
)

// PersonFeatures is the derived behavioral summary for one Person. It is a
// cache of a pure aggregation over Event and EmailEvent history and is always
// reconstructible from raw events; it is never independently authoritative.
type PersonFeatures struct {
	PersonID     uuid.UUID  `json:"person_id" db:"person_id"`
	ActiveDays   int        `json:"active_days" db:"active_days"`
	CoreActions  int        `json:"core_actions" db:"core_actions"`
	PricingViews int        `json:"pricing_views" db:"pricing_views"`
	EmailOpens   int        `json:"email_opens" db:"email_opens"`
	EmailClicks  int        `json:"email_clicks" db:"email_clicks"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty" db:"last_active_at"`
	ComputedAt   time.Time  `json:"computed_at" db:"computed_at"`
}
