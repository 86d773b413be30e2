package token

import (
	"errors"
	"fmt"
)

// Sentinel errors for token verification.
var (
	// ErrMalformed indicates the token structure, algorithm or claims are unacceptable.
	ErrMalformed = errors.New("token is malformed")

	// ErrExpired indicates the token's expiry has passed.
	ErrExpired = errors.New("token has expired")

	// ErrBadSignature indicates the signature does not match the signing key.
	ErrBadSignature = errors.New("token signature is invalid")

	// ErrKeyTooShort indicates the signing secret is shorter than 256 bits.
	ErrKeyTooShort = errors.New("signing secret must be at least 32 bytes")

	// ErrEmptySubject indicates Issue was called without a subject.
	ErrEmptySubject = errors.New("token subject is required")
)

// Kind classifies a verification failure.
type Kind int

// Verification failure kinds.
const (
	KindMalformed Kind = iota + 1
	KindExpired
	KindBadSignature
)

// String returns the kind as used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindExpired:
		return "expired"
	case KindBadSignature:
		return "bad_signature"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindExpired:
		return ErrExpired
	case KindBadSignature:
		return ErrBadSignature
	default:
		return ErrMalformed
	}
}

// VerificationError is returned by Verify for every rejected token.
type VerificationError struct {
	Kind  Kind
	Cause error
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind.sentinel(), e.Cause)
	}
	return e.Kind.sentinel().Error()
}

// Unwrap returns the underlying cause.
func (e *VerificationError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the failure kind.
func (e *VerificationError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the failure kind of err, or 0 when err is not a VerificationError.
func KindOf(err error) Kind {
	var verr *VerificationError
	if errors.As(err, &verr) {
		return verr.Kind
	}
	return 0
}

func malformed(format string, args ...any) *VerificationError {
	return &VerificationError{Kind: KindMalformed, Cause: fmt.Errorf(format, args...)}
}
