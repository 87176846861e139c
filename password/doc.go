// Package password implements password hashing and verification with
// Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports whether a stored hash was produced with
// weaker parameters than the current configuration, so callers can re-hash
// on the next successful sign-in.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other draftauth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
