package errors

import (
	"errors"
	"fmt"
)

// Common error types for the Puku auth subsystem
var (
	// OAuth flow errors (surfaced as 400 by the authorization service)
	ErrOAuthProvider = errors.New("authorization provider returned an error")
	ErrMissingCode   = errors.New("missing authorization code")
	ErrTokenExchange = errors.New("token exchange failed")
	ErrUserInfo      = errors.New("failed to fetch user info")

	// Session errors
	ErrInvalidSession = errors.New("invalid or expired session")
	ErrParse          = errors.New("malformed response")

	// Desktop client errors
	ErrNoTokenInCallback = errors.New("no token in callback")
	ErrSignInTimeout     = errors.New("sign in timed out")
	ErrSignInInProgress  = errors.New("sign in already in progress")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
