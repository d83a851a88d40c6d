package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// UsernameRegex is the character set allowed in a channel handle.
var UsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const (
	usernameMin = 3
	usernameMax = 50
	passwordMin = 6
	passwordMax = 72 // bcrypt ignores anything past 72 bytes
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared struct validator with the custom `username`
// tag registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return ValidateUsername(fl.Field().String()) == nil
		})
	})
	return validate
}

// Struct validates v against its `validate` tags and flattens failures into
// one readable error.
func Struct(v interface{}) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "username":
		return fmt.Sprintf("%s may only contain letters, numbers, _ and - (%d-%d characters)", field, usernameMin, usernameMax)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s is too long (max %s)", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	switch n := len(username); {
	case n == 0:
		return errors.New("username is required")
	case n < usernameMin:
		return fmt.Errorf("username must be at least %d characters", usernameMin)
	case n > usernameMax:
		return fmt.Errorf("username is too long (max %d characters)", usernameMax)
	}
	if !UsernameRegex.MatchString(username) {
		return errors.New("username contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidatePassword checks length in bytes, the unit bcrypt truncates on.
func ValidatePassword(password string) error {
	switch n := len(password); {
	case n == 0:
		return errors.New("password is required")
	case n < passwordMin:
		return fmt.Errorf("password must be at least %d characters", passwordMin)
	case n > passwordMax:
		return fmt.Errorf("password is too long (max %d bytes)", passwordMax)
	}
	return nil
}

// ValidateText checks free text such as tweet or comment content: non-blank,
// valid UTF-8 and at most max runes once trimmed.
func ValidateText(s, fieldName string, max int) error {
	if err := ValidateNonEmptyString(s, fieldName); err != nil {
		return err
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return ValidateStringLength(strings.TrimSpace(s), 1, max, fieldName)
}

func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength counts runes, not bytes.
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
