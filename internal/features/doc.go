// Package features derives behavioral feature summaries from a person's
// event history and the email-engagement side channel.
//
// Features are a cache: every value is recomputable from the raw Event and
// EmailEvent tables. ComputePersonFeatures is the authoritative full
// recompute; IncrementalUpdate is the cheap on-write path and must always
// converge to the same counters as a full recompute over the same events.
package features
