package booking

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const minNameLength = 2

var (
	ErrNameTooShort = errors.New("name is too short")
	ErrInvalidPhone = errors.New("phone number is invalid")
)

var phonePattern = regexp.MustCompile(`^\+?\d[\d \-()]{8,}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("person_name", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= minNameLength
	})
	_ = v.RegisterValidation("contact_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})

	return v
}

// ValidateName returns the trimmed name or ErrNameTooShort.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := validate.Var(name, "person_name"); err != nil {
		return "", ErrNameTooShort
	}
	return name, nil
}

// ValidatePhone returns the trimmed phone or ErrInvalidPhone.
func ValidatePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if err := validate.Var(phone, "contact_phone"); err != nil {
		return "", ErrInvalidPhone
	}
	return phone, nil
}
