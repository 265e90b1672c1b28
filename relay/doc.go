// Package relay serves the small HTTP API the dashboard uses to keep its
// token cookie in sync and to validate credentials against the identity
// service: mirror a token into the cookie, read it back, and forward a
// validation call.
//
// The relay never judges tokens itself. Validation is forwarded verbatim
// to the identity service and its status code is passed through; an
// unreachable identity service reads as 502, not as an invalid token.
package relay
