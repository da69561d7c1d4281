// Package automation fans out segment-transition side effects to external
// integrations: email-marketing audiences, ad-platform custom audiences, and
// operator-configured webhooks.
//
// Work items are enqueued as durable jobs AFTER the membership row commits,
// then claimed and executed by a worker with its own retry policy. A job
// that exhausts its attempts is dead-lettered; it never corrupts membership
// state or blocks sibling automations.
package automation
