package identity

import "errors"

// Sentinel errors for the identity service layer. Absence of a person or
// link is an expected lookup outcome and is reported as a nil result, not as
// one of these errors; these cover genuine storage-level failures.
var (
	ErrNotFound = errors.New("person not found")
)
