package domain

import (
	"time"

	"github.com/google/uuid"
)

// Person is the canonical, deduplicated identity underlying every
// channel-specific representation of a user. At most one Person exists per
// email; email is the primary matching key when present.
type Person struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email,omitempty" db:"email"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Name      string    `json:"name,omitempty" db:"name"`
	Traits    Traits    `json:"traits" db:"traits"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Traits carries the profile attributes the marketplace reports on identify.
// Known fields are typed; anything the producer sends that we don't model yet
// lands in Extra so it survives a round trip.
type Traits struct {
	Role               string            `json:"role,omitempty"`
	VerificationStatus string            `json:"verification_status,omitempty"`
	AccountStatus      string            `json:"account_status,omitempty"`
	City               string            `json:"city,omitempty"`
	FirstName          string            `json:"first_name,omitempty"`
	Extra              map[string]string `json:"extra,omitempty"`
}

// Merge folds incoming traits into the receiver. Non-empty incoming fields
// win; Extra keys are merged with incoming keys winning. Existing values are
// never cleared by an empty incoming field.
func (t Traits) Merge(in Traits) Traits {
	out := t
	if in.Role != "" {
		out.Role = in.Role
	}
	if in.VerificationStatus != "" {
		out.VerificationStatus = in.VerificationStatus
	}
	if in.AccountStatus != "" {
		out.AccountStatus = in.AccountStatus
	}
	if in.City != "" {
		out.City = in.City
	}
	if in.FirstName != "" {
		out.FirstName = in.FirstName
	}
	if len(in.Extra) > 0 {
		merged := make(map[string]string, len(t.Extra)+len(in.Extra))
		for k, v := range t.Extra {
			merged[k] = v
		}
		for k, v := range in.Extra {
			merged[k] = v
		}
		out.Extra = merged
	}
	return out
}

// IdentityProvider enumerates the external systems whose identifiers we link
// to a Person.
type IdentityProvider string

const (
	ProviderApp     IdentityProvider = "app"     // marketplace's own user accounts
	ProviderEmail   IdentityProvider = "email"   // outbound email platform contact id
	ProviderPayment IdentityProvider = "payment" // payment processor customer id
	ProviderAds     IdentityProvider = "ads"     // ad platform hashed identifier
	ProviderWeb     IdentityProvider = "web"     // web session / anonymous cookie
)

// IdentityLink maps one external system's identifier to a Person. A given
// (provider, external id) pair resolves to exactly one Person.
type IdentityLink struct {
	PersonID   uuid.UUID         `json:"person_id" db:"person_id"`
	Provider   IdentityProvider  `json:"provider" db:"provider"`
	ExternalID string            `json:"external_id" db:"external_id"`
	Metadata   map[string]string `json:"metadata,omitempty" db:"metadata"`
	LinkedAt   time.Time         `json:"linked_at" db:"linked_at"`
}
