package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// IsEmail reports whether a login identifier should be matched against the
// email column instead of the username.
func IsEmail(value string) bool {
	return emailPattern.MatchString(value)
}

func NormalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func Username(value string) (string, error) {
	value = NormalizeIdentifier(value)
	n := utf8.RuneCountInString(value)
	switch {
	case value == "":
		return "", ErrUsernameRequired
	case n < 2:
		return "", ErrUsernameTooShort
	case n > 20:
		return "", ErrUsernameTooLong
	}
	return value, nil
}

func Email(value string) (string, error) {
	value = NormalizeIdentifier(value)
	switch {
	case value == "":
		return "", ErrEmailRequired
	case len(value) > 100:
		return "", ErrEmailTooLong
	case !IsEmail(value):
		return "", ErrEmailInvalid
	}
	return value, nil
}

func Password(value string) error {
	n := utf8.RuneCountInString(value)
	switch {
	case value == "":
		return ErrPasswordRequired
	case n < 5:
		return ErrPasswordTooShort
	case n > 20:
		return ErrPasswordTooLong
	}
	return nil
}

func PasswordsMatch(password1, password2 string) error {
	if err := Password(password1); err != nil {
		return err
	}
	if err := Password(password2); err != nil {
		return err
	}
	if password1 != password2 {
		return ErrPasswordMismatch
	}
	return nil
}
