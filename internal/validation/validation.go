// Package validation holds the input rules shared by the API and its clients.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxCaptionLength is the maximum caption length in characters.
	MaxCaptionLength = 500
	// MinPasswordLength is the minimum password length accepted at sign-up.
	MinPasswordLength = 6
	// MaxUsernameLength bounds usernames.
	MaxUsernameLength = 30
)

var (
	ErrCaptionRequired  = errors.New("caption is required")
	ErrCaptionTooLong   = fmt.Errorf("caption must not exceed %d characters", MaxCaptionLength)
	ErrUsernameRequired = errors.New("username is required")
	ErrUsernameTooLong  = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
	ErrEmailRequired    = errors.New("email is required")
	ErrEmailInvalid     = errors.New("invalid email format")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordMismatch = errors.New("passwords do not match")
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the custom tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("caption", func(fl validator.FieldLevel) bool {
			_, err := Caption(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			_, err := Username(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Struct validates s against its `validate` tags and returns a readable error.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return ErrEmailInvalid.Error()
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	case "caption":
		if strings.TrimSpace(fe.Value().(string)) == "" {
			return ErrCaptionRequired.Error()
		}
		return ErrCaptionTooLong.Error()
	case "username":
		if strings.TrimSpace(fe.Value().(string)) == "" {
			return ErrUsernameRequired.Error()
		}
		return ErrUsernameTooLong.Error()
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// Caption trims the caption and checks it is non-empty and at most MaxCaptionLength characters.
func Caption(caption string) (string, error) {
	trimmed := strings.TrimSpace(caption)
	if trimmed == "" {
		return "", ErrCaptionRequired
	}
	if utf8.RuneCountInString(trimmed) > MaxCaptionLength {
		return "", ErrCaptionTooLong
	}
	return trimmed, nil
}

// Username trims the username and checks it is non-empty and bounded.
func Username(username string) (string, error) {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return "", ErrUsernameRequired
	}
	if utf8.RuneCountInString(trimmed) > MaxUsernameLength {
		return "", ErrUsernameTooLong
	}
	return trimmed, nil
}

// Email checks that email is present and well formed.
func Email(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	if err := Validator().Var(email, "email"); err != nil {
		return ErrEmailInvalid
	}
	return nil
}

// Credentials checks the sign-in form: both fields must be filled.
func Credentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return ErrEmailRequired
	}
	if password == "" {
		return ErrPasswordRequired
	}
	return nil
}

// Password checks the sign-up password rule.
func Password(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// SignUp checks the whole sign-up form and returns the trimmed username.
func SignUp(email, password, confirm, username string) (string, error) {
	if err := Email(email); err != nil {
		return "", err
	}
	if err := Password(password); err != nil {
		return "", err
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return Username(username)
}
