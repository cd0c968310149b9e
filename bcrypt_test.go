package defects_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	defects "github.com/goliatone/go-defects"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
		{
			name:     "Longer than bcrypt accepts",
			password: strings.Repeat("x", defects.MaxPasswordBytes+1),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := defects.HashPassword(tt.password)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.password, hash)
			assert.NoError(t, defects.ComparePasswordAndHash(tt.password, hash))
		})
	}
}

func TestComparePasswordAndHash(t *testing.T) {
	hash := passwordHash(t)

	assert.NoError(t, defects.ComparePasswordAndHash(testPassword, hash))
	assert.Error(t, defects.ComparePasswordAndHash("Wrong1234", hash))
	assert.Error(t, defects.ComparePasswordAndHash(testPassword, "not-a-hash"))
}
