package auth

import (
	"errors"
	"regexp"

	"account_service/internal/lib/hasher"

	"github.com/go-playground/validator/v10"
)

const minPasswordLen = 8

var (
	nameRe  = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	emailRe = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("person_name", func(fl validator.FieldLevel) bool {
		return nameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("account_email", func(fl validator.FieldLevel) bool {
		return emailRe.MatchString(fl.Field().String())
	})

	return v
}

type registration struct {
	Name     string `validate:"required,person_name"`
	Email    string `validate:"required,account_email"`
	Password string `validate:"required,min=8"`
}

// fieldErrors maps a failed field to the error reported for it. Fields are
// checked in declaration order, so the first failure wins.
var fieldErrors = map[string]*Error{
	"Name":     ErrInvalidName,
	"Email":    ErrInvalidEmail,
	"Password": ErrPasswordTooShort,
}

func validateRegistration(name, email, password string) error {
	err := validate.Struct(registration{
		Name:     name,
		Email:    email,
		Password: password,
	})
	if err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return ErrInternal.wrap(err)
		}

		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return ErrEmptyFields
			}
		}

		return fieldErrors[verrs[0].Field()]
	}

	if len(password) > hasher.MaxSecretLen {
		return ErrPasswordTooLong
	}

	return nil
}

func validateEmail(email string) error {
	if err := validate.Var(email, "required"); err != nil {
		return ErrEmptyFields
	}

	if err := validate.Var(email, "account_email"); err != nil {
		return ErrInvalidEmail
	}

	return nil
}
