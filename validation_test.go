package defects_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	defects "github.com/goliatone/go-defects"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{name: "valid", password: "Secret123"},
		{name: "too short", password: "Ab1", wantErr: "password must be at least 8 characters long"},
		{name: "no digit", password: "Secretpass", wantErr: "password must contain at least one digit"},
		{name: "no letter", password: "12345678", wantErr: "password must contain at least one letter"},
		{name: "no uppercase", password: "secret123", wantErr: "password must contain at least one uppercase letter"},
		{name: "no lowercase", password: "SECRET123", wantErr: "password must contain at least one lowercase letter"},
		{name: "cyrillic letters count", password: "Пароль123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := defects.ValidatePassword(tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assertErrorMessage(t, err, tt.wantErr)
		})
	}
}

func TestValidatePasswordLength(t *testing.T) {
	assert.NoError(t, defects.ValidatePasswordLength(strings.Repeat("a", defects.MaxPasswordBytes)))
	assertErrorMessage(t, defects.ValidatePasswordLength(strings.Repeat("a", defects.MaxPasswordBytes+1)), "password is too long")
}

func TestValidateRegistrationFields(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		login    string
		fullName string
		wantErr  string
	}{
		{name: "valid", email: "ivan@example.com", login: "ivan_p", fullName: "Иван Петров"},
		{name: "hyphenated name", email: "ann@example.com", login: "ann", fullName: "Anna-Maria Smith"},
		{name: "bad email", email: "ivan@", login: "ivan", fullName: "Иван Петров", wantErr: "invalid email format"},
		{name: "short login", email: "ivan@example.com", login: "iv", fullName: "Иван Петров", wantErr: "login must be between 3 and 50 characters long"},
		{name: "login charset", email: "ivan@example.com", login: "иван", fullName: "Иван Петров", wantErr: "login may only contain latin letters, digits and underscores"},
		{name: "full name charset", email: "ivan@example.com", login: "ivan", fullName: "Ivan P3trov", wantErr: "full name may only contain letters, spaces and hyphens"},
		{name: "single word name", email: "ivan@example.com", login: "ivan", fullName: "Иван", wantErr: "full name must contain first and last name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := defects.ValidateRegistrationFields(tt.email, tt.login, tt.fullName)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assertErrorMessage(t, err, tt.wantErr)
		})
	}
}
