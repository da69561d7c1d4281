// Package identity implements the identity resolver: the canonical Person
// entity and the mapping from external provider ids to persons.
//
// The service layer owns all stitching rules (email-first matching, trait
// merging, link uniqueness). It depends on repository interfaces defined in
// this package and should never import from api/.
//
// Repository implementations live in repository/postgres/.
package identity
