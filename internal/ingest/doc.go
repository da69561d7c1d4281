// Package ingest is the event intake pipeline: resolve the person by
// source, fold attribution into the event, persist append-only, forward
// ad-channel conversions, then run feature derivation and segment
// evaluation. The event is durably stored before anything derived from it
// runs.
package ingest
