package auth_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/go-offline-auth/auth"
	"github.com/jrsteele09/go-offline-auth/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidateRegistration(t *testing.T) {
	v := auth.NewValidator()

	tests := []struct {
		name   string
		params auth.RegisterParameters
		fields []string
	}{
		{
			name:   "valid without recovery",
			params: auth.RegisterParameters{Username: "alice", Password: "x"},
		},
		{
			name: "valid with recovery",
			params: auth.RegisterParameters{
				Username: "alice", Password: "x",
				SecurityQuestion: utils.Ptr("pet?"), SecurityAnswer: utils.Ptr("rex"),
			},
		},
		{
			name:   "empty username and password",
			params: auth.RegisterParameters{},
			fields: []string{"username", "password"},
		},
		{
			name:   "username with whitespace",
			params: auth.RegisterParameters{Username: "al ice", Password: "x"},
			fields: []string{"username"},
		},
		{
			name:   "username too long",
			params: auth.RegisterParameters{Username: strings.Repeat("é", auth.MaxUsernameLength+1), Password: "x"},
			fields: []string{"username"},
		},
		{
			name:   "username at limit",
			params: auth.RegisterParameters{Username: strings.Repeat("é", auth.MaxUsernameLength), Password: "x"},
		},
		{
			name:   "answer without question",
			params: auth.RegisterParameters{Username: "alice", Password: "x", SecurityAnswer: utils.Ptr("rex")},
			fields: []string{"security_question"},
		},
		{
			name:   "blank answer with question",
			params: auth.RegisterParameters{Username: "alice", Password: "x", SecurityQuestion: utils.Ptr("pet?"), SecurityAnswer: utils.Ptr("  ")},
			fields: []string{"security_answer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRegistration(tt.params)
			if len(tt.fields) == 0 {
				require.NoError(t, err)
				return
			}
			authErr := requireKind(t, err, auth.KindValidation)
			var got []string
			for _, fe := range authErr.FieldErrors {
				got = append(got, fe.Field)
			}
			require.Equal(t, tt.fields, got)
		})
	}
}

func TestValidator_ValidateLogin(t *testing.T) {
	v := auth.NewValidator()
	require.NoError(t, v.ValidateLogin("alice", "pw"))

	err := v.ValidateLogin("", "")
	authErr := requireKind(t, err, auth.KindValidation)
	require.Len(t, authErr.FieldErrors, 2)
	require.Contains(t, err.Error(), "username must not be empty")
}

func TestValidator_PasswordChangeAndReset(t *testing.T) {
	v := auth.NewValidator()
	require.NoError(t, v.ValidatePasswordChange("old", "new"))
	requireKind(t, v.ValidatePasswordChange("", "new"), auth.KindValidation)

	require.NoError(t, v.ValidatePasswordReset("blue", "new"))
	requireKind(t, v.ValidatePasswordReset(" ", "new"), auth.KindValidation)
	requireKind(t, v.ValidatePasswordReset("blue", ""), auth.KindValidation)
}
