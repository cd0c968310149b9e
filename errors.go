package defects

import (
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeEmailNotConfirmed  = "EMAIL_NOT_CONFIRMED"
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeNotFound           = "NOT_FOUND"
	TextCodeValidation         = "VALIDATION_FAILED"
	TextCodeConflict           = "CONFLICT"
	TextCodeEmailSendFailed    = "EMAIL_SEND_FAILED"
)

// ErrTokenExpired is returned when a bearer token is past its expiration
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is returned for tokens we can not parse or verify
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrUnauthenticated is the generic guard failure
var ErrUnauthenticated = goerrors.New("not authenticated", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeUnauthenticated)

// ErrInvalidCredentials does not reveal which of identifier or password was wrong
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// ErrEmailNotConfirmed is returned on login for users with a pending registration token
var ErrEmailNotConfirmed = goerrors.New("confirm your email before logging in", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeEmailNotConfirmed)

// ErrConfirmEmail is the guard outcome for pending users holding a valid token
var ErrConfirmEmail = goerrors.New("confirm your email", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeEmailNotConfirmed)

// ErrForbidden is returned on role or ownership mismatch
var ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeForbidden)

// ErrEmailSendFailed is the generic registration failure when the mail server rejects us
var ErrEmailSendFailed = goerrors.New("could not send email, try again later", goerrors.CategoryInternal).
	WithCode(goerrors.CodeInternal).
	WithTextCode(TextCodeEmailSendFailed)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword hides the bcrypt specific error
var ErrMismatchedHashAndPassword = errors.New("password and hash do not match")

// NewValidationError builds a client error whose message is shown verbatim
func NewValidationError(msg string) *goerrors.Error {
	return goerrors.New(msg, goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeValidation)
}

// NewConflictError is used for duplicate login/email
func NewConflictError(msg string) *goerrors.Error {
	return goerrors.New(msg, goerrors.CategoryConflict).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeConflict)
}

// NewNotFoundError reports a missing entity by name
func NewNotFoundError(entity string) *goerrors.Error {
	return goerrors.New(entity+" not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(TextCodeNotFound).
		WithMetadata(map[string]any{"entity": entity})
}

// IsNotFound matches ORM, driver and rich not found errors
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return false
}

// IsUniqueViolation checks for sqlite and postgres unique constraint errors
// anywhere in the chain
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE=23505")
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenExpired) || strings.Contains(err.Error(), "token is expired")
}

var (
	// ErrLoginTaken is returned when the login belongs to another user
	ErrLoginTaken = NewConflictError("login is already taken")
	// ErrEmailTaken is returned when the email belongs to another user
	ErrEmailTaken = NewConflictError("email is already registered")
	// ErrNotEnoughData is returned when a registration field is empty
	ErrNotEnoughData = NewValidationError("not enough data")
	// ErrPasswordsDoNotMatch is returned when confirmation differs
	ErrPasswordsDoNotMatch = NewValidationError("passwords do not match")
)

var (
	// ErrVerificationTokenMissing is returned when /verify has no token
	ErrVerificationTokenMissing = NewValidationError("verification token not provided")
	// ErrVerificationTokenInvalid covers unknown and already consumed tokens
	ErrVerificationTokenInvalid = goerrors.New("invalid or expired verification token", goerrors.CategoryBadInput).
					WithCode(goerrors.CodeBadRequest).
					WithTextCode("VERIFICATION_TOKEN_INVALID")
)
