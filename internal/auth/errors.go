package auth

// Error is a provider-reported failure. Its message is meant to be shown to
// the user as-is.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrInvalidEmail       = &Error{Code: "auth/invalid-email", Message: "auth: invalid email"}
	ErrWeakPassword       = &Error{Code: "auth/weak-password", Message: "auth: weak password (minimum 6 characters)"}
	ErrEmailInUse         = &Error{Code: "auth/email-already-in-use", Message: "auth: email already in use"}
	ErrInvalidCredentials = &Error{Code: "auth/invalid-credential", Message: "auth: invalid credentials"}
	ErrSessionInvalid     = &Error{Code: "auth/session-invalid", Message: "auth: session expired or revoked"}
	ErrNotSignedIn        = &Error{Code: "auth/no-current-user", Message: "auth: not signed in"}
)
