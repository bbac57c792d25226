// Package credentials provides the credential collaborators the Engine
// consults at login.
//
// [Provider] answers "does this username/password pair match". [Directory]
// lists and counts known users. [SQLStore] implements both on database/sql
// for SQLite, PostgreSQL and MySQL. [StaticProvider] is the zero-row variant
// that holds the single admin pair.
//
// Passwords are compared as stored. Hashing is out of scope for this package.
package credentials
