// Package adplatform talks to the ad network's conversions and custom
// audience APIs. Personal identifiers are SHA-256 hashed before they leave
// the process; raw emails are never sent.
package adplatform
