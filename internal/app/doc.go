// Package app assembles the bridge server: configuration, logging,
// metrics, the remote license client, the reconciler, the services
// layer and the HTTP router, plus lifecycle management for the process.
package app
