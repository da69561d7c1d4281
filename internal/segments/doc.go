// Package segments implements declarative audience segments: a criteria AST
// evaluated by a small pure interpreter, membership-transition detection, and
// the hook point for firing automations exactly once per enter/exit.
//
// SegmentMembership rows are a cache of the evaluator's last result, used
// only to detect transitions; criteria evaluation over features,
// subscriptions, and event history is always the source of truth.
package segments
