// Package services contains the business logic layer between the HTTP
// transport and the licensing reconciler. Services translate transport
// requests into reconciler calls, attach trace identifiers, and shape
// responses for the API.
package services
