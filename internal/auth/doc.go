// Package auth implements the gatekeeper's authenticator stage.
//
// The authenticator reads an "Authorization: Bearer <token>" header, verifies
// the token with a Verifier and binds the resulting Authentication into the
// request context. It fails open: requests with no token or a token that does
// not verify continue unauthenticated, and downstream handlers decide through
// FromContext or Require whether that is acceptable. Strict mode turns those
// cases into 401 responses.
package auth
