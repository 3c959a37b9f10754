// Package identity holds the portal's user accounts: the User model, email
// normalization, typed store errors and the memory and Postgres stores.
//
// Password hashing is the caller's concern; stores only persist hashes.
package identity
