// Package credstore persists the signed-in credential — a bearer token and
// its serialized user profile — across the two independent mediums the
// dashboard relies on: a redis-backed durable store keyed by device, and the
// "token" browser cookie readable by both client script and the edge
// gatekeeper.
//
// # Consistency model
//
// The two mediums carry no transaction protocol. Writes are last-writer-wins
// and Read repairs the durable medium from the cookie when the durable copy
// is missing (repair-on-read). A corrupt serialized profile is recovered by
// clearing both entries and reporting no session — silent and non-fatal.
//
// # What this package must NOT do
//
//   - Decide route access or redirects.
//   - Call the identity service or inspect token contents.
//   - Treat a cookie-write failure as fatal: the durable medium stays
//     authoritative.
package credstore
