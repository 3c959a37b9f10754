// Package password provides bcrypt password hashing for the portal.
//
// It includes:
// - A value-typed Config (cost, long-password handling, policy) loaded from env
// - Password policy validation
// - The Bcrypt extension object, created unbound and initialized at startup
//
// Security notes:
// - bcrypt only reads the first 72 bytes of its input. Longer passwords are either
//   rejected or pre-hashed with SHA-256, never silently truncated.
// - Stored hashes are treated as untrusted input during Verify.
package password
