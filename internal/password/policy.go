package password

import (
	"unicode"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
)

const MinLength = 8

// Validate enforces the password policy: present, at least MinLength
// characters, at least one letter and one digit.
func Validate(pw string) error {
	if pw == "" {
		return apperr.ErrPasswordPolicy.WithMessage("auth_error#validation_required_field")
	}
	if len([]rune(pw)) < MinLength {
		return apperr.ErrPasswordPolicy
	}
	var letter, digit bool
	for _, r := range pw {
		switch {
		case r <= unicode.MaxASCII && unicode.IsLetter(r):
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !letter || !digit {
		return apperr.ErrPasswordPolicy
	}
	return nil
}
