// Package http contains the chi HTTP handlers for the provisioning
// API. Handlers decode and validate requests, delegate to the services
// layer, and render responses; errors are mapped to RFC 7807 problem
// details by the shared error handler.
package http
