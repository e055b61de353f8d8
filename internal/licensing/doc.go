// Package licensing implements the core of the provisioning connector:
// deterministic license key derivation, a typed client for the remote
// license service REST API, and the reconciler that drives the account
// lifecycle (create-if-absent, suspend, unsuspend, terminate,
// change-package, renew) with read-modify-write semantics.
//
// The remote service owns every LicenseRecord. The connector never caches
// remote state between invocations; each operation fetches the current
// record, copies every field it does not intend to change into the update
// payload, and submits a partial update. Correlation between a billing
// subscription and its remote record happens two ways:
//
//   - metadata lookup: each record carries {serviceid, username} metadata
//     entries written at creation time
//   - derived key: DeriveKey(subscriptionID + "-" + username) reproduces
//     the formatted license key without any remote call
//
// All operations are synchronous and single-attempt. Failures surface as
// errors; the services layer converts them into the success/error result
// contract the billing platform expects.
package licensing
