// Package httputil holds the JSON request/response helpers shared by the
// API handlers. Handlers go through these instead of raw ResponseWriter
// calls so every endpoint emits the same envelope and error shape.
package httputil
