package user

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(NormalizeEmail(email)) {
		return fmt.Errorf("email format is invalid")
	}
	return nil
}

// ValidateName checks a first or last name against the 2-50 character bound.
func ValidateName(field, value string) error {
	n := utf8.RuneCountInString(value)
	if n < 2 || n > 50 {
		return fmt.Errorf("%s must be 2-50 characters", field)
	}
	return nil
}

// ValidatePassword enforces the password policy: at least 6 characters with
// an upper-case letter, a lower-case letter, and a digit.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("password must contain an upper-case letter, a lower-case letter, and a digit")
	}
	return nil
}

// ValidatePhone accepts an empty value (the field is optional) or an
// E.164-style number.
func ValidatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("phone number format is invalid")
	}
	return nil
}

// ValidateOptionalField bounds optional free-text fields such as department
// and position.
func ValidateOptionalField(field, value string) error {
	if utf8.RuneCountInString(value) > 100 {
		return fmt.Errorf("%s must be at most 100 characters", field)
	}
	return nil
}

func ValidateRole(role Role) error {
	if !role.Valid() {
		return fmt.Errorf("role must be one of user, admin, superadmin")
	}
	return nil
}
