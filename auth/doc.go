// Package auth guards operator endpoints such as GET /alerts.
//
// Two credential types are supported: static API keys sent in a header
// and JWT bearer tokens verified with a shared HMAC secret or keys fetched
// from a JWKS endpoint. [Chain] tries each configured [Authenticator] that
// recognizes the request, and [Require] turns the result into HTTP
// middleware that rejects unauthenticated requests with 401.
package auth
