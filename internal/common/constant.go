// Package common contains shared constants and sentinel errors used across
// cardkeeper components.
package common

// AuthorizationHeaderName carries "Bearer <access token>" on API requests.
const AuthorizationHeaderName = "Authorization"

// RequestIDHeaderName is echoed by the server for every request.
const RequestIDHeaderName = "X-Request-ID"
