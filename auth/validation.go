package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxUsernameLength is the longest accepted username, in runes.
const MaxUsernameLength = 64

// Validator checks the shape of caller input before any credential work is
// done. Failures are reported together as a single KindValidation error.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateRegistration checks the username, password and the optional
// security question/answer pair.
func (v *Validator) ValidateRegistration(params RegisterParameters) error {
	var fields []FieldError
	fields = append(fields, v.username(params.Username)...)
	fields = append(fields, v.required("password", params.Password)...)

	switch hasQuestion, hasAnswer := params.hasQuestion(), params.hasAnswer(); {
	case hasQuestion && !hasAnswer:
		fields = append(fields, FieldError{Field: "security_answer", Message: "is required when a security question is set"})
	case hasAnswer && !hasQuestion:
		fields = append(fields, FieldError{Field: "security_question", Message: "is required when a security answer is set"})
	}
	return fieldErrors(fields)
}

// ValidateLogin checks that both credentials were supplied.
func (v *Validator) ValidateLogin(username, password string) error {
	var fields []FieldError
	fields = append(fields, v.required("username", username)...)
	fields = append(fields, v.required("password", password)...)
	return fieldErrors(fields)
}

// ValidatePasswordChange checks that the current and new passwords were supplied.
func (v *Validator) ValidatePasswordChange(current, next string) error {
	var fields []FieldError
	fields = append(fields, v.required("current_password", current)...)
	fields = append(fields, v.required("new_password", next)...)
	return fieldErrors(fields)
}

// ValidatePasswordReset checks that the answer and new password were supplied.
func (v *Validator) ValidatePasswordReset(answer, next string) error {
	var fields []FieldError
	if strings.TrimSpace(answer) == "" {
		fields = append(fields, FieldError{Field: "security_answer", Message: "must not be empty"})
	}
	fields = append(fields, v.required("new_password", next)...)
	return fieldErrors(fields)
}

func (v *Validator) username(username string) []FieldError {
	if username == "" {
		return []FieldError{{Field: "username", Message: "must not be empty"}}
	}
	var fields []FieldError
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		fields = append(fields, FieldError{Field: "username", Message: "must be at most 64 characters"})
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		fields = append(fields, FieldError{Field: "username", Message: "must not contain whitespace"})
	}
	return fields
}

func (v *Validator) required(field, value string) []FieldError {
	if value == "" {
		return []FieldError{{Field: field, Message: "must not be empty"}}
	}
	return nil
}

func fieldErrors(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, FieldErrors: fields}
}
