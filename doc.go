// Package farmgate keeps a livestock dashboard's login session consistent
// across page loads: a bearer token and user profile established on login,
// mirrored into a durable redis store and a browser cookie, restored
// optimistically on bootstrap, and revalidated in the background without
// ever logging the user out on a failed check.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// farmgate is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (SessionState, LoginResult, MetricsSnapshot).
// The credential mediums live in credstore, the identity client in
// identity, the HTTP surfaces in gatekeeper and relay; audit dispatch is
// internal.
//
// # What this package must NOT do
//
//   - Decide authorization by role at the edge. The gatekeeper only checks
//     credential presence; role-based routing is a session-level concern
//     handled by [Engine.RedirectFor].
//   - Judge token validity. Only the identity service decides whether a
//     token is good; cached state is trusted until it says otherwise.
//   - Expose the redis client or durable key layout in its public API.
package farmgate
