// Package emailevents records ESP delivery and engagement webhooks against
// sent messages. Events are append-only; opens and clicks feed the derived
// email-engagement features when the recipient resolves to a known person.
package emailevents
