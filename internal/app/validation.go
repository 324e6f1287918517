package app

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"levelup-sidequest/internal/domain"
)

var mobilePattern = regexp.MustCompile(`^(09\d{9}|\+639\d{9})$`)

// newValidator returns a validator that reports fields by their json name and
// knows the ph_mobile tag.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("ph_mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// fieldErrors turns a validator failure into per-field messages. Any other error is returned as is.
func fieldErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := domain.FieldErrors{}
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = registrationMessage(fe)
		}
	}
	return out
}

func registrationMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "name":
		return "The name must be between 2 and 255 characters."
	case "email":
		return "The email must be a valid email address."
	case "birthday":
		return "The birthday must be a date in YYYY-MM-DD format."
	case "age":
		return "The age must be between 13 and 35."
	case "invited_by":
		if fe.Tag() == "required_if" {
			return "The invited by field is required when you are not a salvationist."
		}
		return "The invited by field must be between 2 and 255 characters."
	case "mobile_number":
		if fe.Tag() == "required_if" {
			return "Mobile number is required when you are not a salvationist."
		}
		return "Please enter a valid Philippine mobile number (e.g., 09123456789 or +639123456789)."
	case "salvationist":
		return "The salvationist field must be yes or no."
	}
	return "The " + strings.ReplaceAll(fe.Field(), "_", " ") + " field is invalid."
}
