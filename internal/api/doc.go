// Package api implements the HTTP REST API of the user service.
//
// This package provides:
//   - Registration and login endpoints that issue bearer tokens
//   - User management endpoints guarded by role and ownership checks
//   - An admin-only audit trail and metrics view
//   - Middleware stack (request ID, logging, recovery, CORS, body limit, auth)
//   - TLS support for production deployments
//
// # Security
//
// Every protected route runs the authentication pipeline: the bearer token
// proves identity only, and the account's role and active flag are re-read
// from the store on each request. A blocked or demoted account loses access
// on its next request even though its token is still within its lifetime.
//
// Error responses share one JSON envelope:
//
//	{"status": 401, "code": "unauthorised", "message": "token required"}
//
// # Graceful Degradation
//
// MQTT and InfluxDB are optional. Without them audit entries are still
// stored and authentication decisions are simply not exported.
package api
