// Package gatekeeper is the edge enforcement point in front of the
// dashboard. It classifies every request path against the engine's route
// tables and either passes it through, redirects it to the login page, or
// forwards it with a bearer header injected from the token cookie.
//
// # Architecture boundaries
//
// The gatekeeper checks credential PRESENCE only. It never inspects the
// token, never calls the identity service, and never looks at roles —
// role-gated navigation is the session layer's job via
// [farmgate.Engine.RedirectFor]. A request with any token cookie passes
// the protected check even if the token is expired; the backend API is
// the authority that rejects it.
//
// # What this package must NOT do
//
//   - Validate tokens or decode their contents.
//   - Redirect authenticated users away from the login page (the edge
//     cannot know the session state, only cookie presence).
//   - Touch redis or any other store.
package gatekeeper
