package credentials

import (
	"unicode"
	"unicode/utf8"
)

// Strength is the coarse classification of a candidate password.
type Strength int

const (
	Weak Strength = iota
	Medium
	Strong
)

func (s Strength) String() string {
	switch s {
	case Weak:
		return "weak"
	case Medium:
		return "medium"
	case Strong:
		return "strong"
	default:
		return "unknown"
	}
}

// ClassifyStrength counts how many of upper, lower, digit and special
// character classes a password uses:
//   - fewer than 6 characters is always weak
//   - strong needs at least 12 characters and 3 classes
//   - medium needs at least 8 characters and 2 classes
func ClassifyStrength(password string) Strength {
	length := utf8.RuneCountInString(password)
	if length < 6 {
		return Weak
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasNumber  bool
		hasSpecial bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	criteria := 0
	for _, ok := range []bool{hasUpper, hasLower, hasNumber, hasSpecial} {
		if ok {
			criteria++
		}
	}

	switch {
	case length >= 12 && criteria >= 3:
		return Strong
	case length >= 8 && criteria >= 2:
		return Medium
	default:
		return Weak
	}
}
