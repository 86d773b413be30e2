// Package token issues and verifies the platform's bearer tokens.
//
// Tokens are compact JWS objects signed with HS256 and nothing else. Access
// tokens are short-lived and carry the tenant and role; refresh tokens are
// long-lived and carry only the subject, the user id and tokenType
// "refresh". Verify reports every failure as a *VerificationError whose
// Kind is malformed, expired or bad signature.
package token
