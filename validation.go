package defects

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
)

// MaxPasswordBytes is the bcrypt input limit
const MaxPasswordBytes = 72

const (
	MinPasswordLength = 8
	MinLoginLength    = 3
	MaxLoginLength    = 50
	MinFullNameLength = 2
	MaxFullNameLength = 100
)

var (
	emailRegexp    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	loginRegexp    = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	fullNameRegexp = regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ\s\-]+$`)
)

// ValidatePassword returns the first password strength rule violated.
// The message is meant to be shown to the user as is.
func ValidatePassword(password string) error {
	err := validation.Validate(password,
		validation.By(passwordRule(func(s string) bool {
			return len([]rune(s)) >= MinPasswordLength
		}, "password must be at least 8 characters long")),
		validation.By(passwordRule(hasRune(unicode.IsDigit), "password must contain at least one digit")),
		validation.By(passwordRule(hasRune(unicode.IsLetter), "password must contain at least one letter")),
		validation.By(passwordRule(hasRune(unicode.IsUpper), "password must contain at least one uppercase letter")),
		validation.By(passwordRule(hasRune(unicode.IsLower), "password must contain at least one lowercase letter")),
	)
	if err != nil {
		return NewValidationError(err.Error())
	}
	return nil
}

// ValidatePasswordLength rejects passwords bcrypt would truncate
func ValidatePasswordLength(password string) error {
	if len([]byte(password)) > MaxPasswordBytes {
		return NewValidationError("password is too long")
	}
	return nil
}

// ValidateRegistrationFields checks email, login and full name formats in that order
func ValidateRegistrationFields(email, login, fullName string) error {
	if err := validation.Validate(email,
		validation.Required.Error("email is required"),
		validation.Match(emailRegexp).Error("invalid email format"),
	); err != nil {
		return NewValidationError(err.Error())
	}

	if err := validation.Validate(login,
		validation.Required.Error("login is required"),
		validation.RuneLength(MinLoginLength, MaxLoginLength).
			Error("login must be between 3 and 50 characters long"),
		validation.Match(loginRegexp).
			Error("login may only contain latin letters, digits and underscores"),
	); err != nil {
		return NewValidationError(err.Error())
	}

	fullName = strings.TrimSpace(fullName)
	if err := validation.Validate(fullName,
		validation.Required.Error("full name is required"),
		validation.RuneLength(MinFullNameLength, MaxFullNameLength).
			Error("full name must be between 2 and 100 characters long"),
		validation.Match(fullNameRegexp).
			Error("full name may only contain letters, spaces and hyphens"),
		validation.By(func(value interface{}) error {
			s, _ := value.(string)
			if len(strings.Fields(s)) < 2 {
				return errors.New("full name must contain first and last name")
			}
			return nil
		}),
	); err != nil {
		return NewValidationError(err.Error())
	}

	return nil
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("passwords do not match")
		}
		return nil
	}
}

func passwordRule(ok func(string) bool, msg string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if !ok(s) {
			return errors.New(msg)
		}
		return nil
	}
}

func hasRune(fn func(rune) bool) func(string) bool {
	return func(s string) bool {
		for _, r := range s {
			if fn(r) {
				return true
			}
		}
		return false
	}
}
