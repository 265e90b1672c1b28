// Package identity is the typed client for the external identity service
// that issues and validates bearer credentials for the dashboard.
//
// # Architecture boundaries
//
// This package owns the wire schema of the identity service: [Profile],
// [Grant], and [APIError]. Every other package that needs to talk about a
// signed-in user imports the profile type from here (the root package
// re-exports it as an alias).
//
// # What this package must NOT do
//
//   - Persist credentials (that is credstore's job).
//   - Inspect or decode the bearer token — it is opaque; only the identity
//     service decides validity.
//   - Make route or redirect decisions.
package identity
