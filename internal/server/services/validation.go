package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/go-playground/validator/v10"
)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

type registrationInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"min=8,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
}

type passwordInput struct {
	Password string `json:"password" validate:"min=8,max=72"`
}

// inputValidator turns struct tag violations into common.ErrValidation
// errors whose text can be shown to the user.
type inputValidator struct {
	validate *validator.Validate
}

func newInputValidator() *inputValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &inputValidator{validate: v}
}

func (v *inputValidator) check(in any) error {
	err := v.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return fmt.Errorf("%w: %s", common.ErrValidation, describe(fieldErrs[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "invalid email address"
	case "min":
		if fe.Field() == "password" {
			return fmt.Sprintf("password must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("%s is too short", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// checkPassword validates a new password.
func (v *inputValidator) checkPassword(password string) error {
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", common.ErrValidation, maxPasswordBytes)
	}
	return v.check(passwordInput{Password: password})
}

// ValidateAccount applies the Register rules to a password account created
// outside the service, such as by an operator tool. email is expected in
// normalized form.
func ValidateAccount(email, password, name string) error {
	v := newInputValidator()
	if err := v.check(registrationInput{Email: email, Password: password, Name: name}); err != nil {
		return err
	}
	return v.checkPassword(password)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
