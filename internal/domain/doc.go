// Package domain defines the core business types for the Matchwell growth
// data plane.
//
// Types in this package are pure value objects with no behavior beyond small
// pure helpers. They are the shared language between handlers, services, and
// repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Merge/validation methods are allowed (they're pure functions on the type)
//   - Constants and enums belong here
package domain
