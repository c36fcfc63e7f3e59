// Package password hashes and verifies credentials with Argon2id in the
// PHC string format. Stored hashes embed their own cost parameters, so
// costs can be raised over time and old hashes re-hashed at next login
// via [Hasher.NeedsRehash].
package password
