// Package account provides a Redis-backed implementation of the
// draftauth.AccountStore contract plus the account-management operations
// that mutate the live snapshot (deactivation, role changes, profile
// edits). The session authority only ever reads through Lookup and
// VerifyCredentials; every write path here belongs to the surrounding
// application.
//
// Each account is a single Redis hash, so Lookup is one authoritative row
// read with no read-modify-write; concurrent requests for the same
// account are safe without coordination.
package account
