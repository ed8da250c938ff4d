package http

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gizilens/backend/internal/domain"
	"github.com/gizilens/backend/pkg/auth"
)

var (
	personNamePattern = regexp.MustCompile(`^[a-zA-Z\s\-']+$`)
	jwtPattern        = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

	registerValidatorsOnce sync.Once
)

var customValidators = map[string]validator.Func{
	"personname": func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	},
	"strongpassword": func(fl validator.FieldLevel) bool {
		return auth.ValidatePasswordStrength(fl.Field().String()) == nil
	},
}

// registerValidators installs the custom tags on gin's validator and makes
// field errors report JSON names. It panics if the tags cannot be installed.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			panic(fmt.Sprintf("unexpected validator engine %T", binding.Validator.Engine()))
		}
		if err := installValidators(v, customValidators); err != nil {
			panic(err)
		}
	})
}

func installValidators(v *validator.Validate, tags map[string]validator.Func) error {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register validator %q: %w", tag, err)
		}
	}
	return nil
}

// bindJSON decodes and validates the body into dst.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]domain.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, domain.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		return domain.NewInvariant(details)
	}
	return domain.NewBadRequest("Invalid request payload JSON format.")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is a required field", field)
	case "email":
		return fmt.Sprintf("%q must be a valid email", field)
	case "min":
		return fmt.Sprintf("%q should have a minimum length of %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%q should have a maximum length of %s", field, fe.Param())
	case "personname":
		return fmt.Sprintf("%q must contain only letters, spaces, hyphens, and apostrophes", field)
	case "strongpassword":
		return fmt.Sprintf("%q must contain at least one lowercase letter, one uppercase letter, one number, and one special character", field)
	case "eqfield":
		return "Passwords do not match"
	case "url":
		return fmt.Sprintf("%q must be a valid URL", field)
	default:
		return fmt.Sprintf("%q is invalid", field)
	}
}

// validateID reports a 422 unless value is a canonical UUID.
func validateID(value string) error {
	if len(value) != 36 {
		return invalidID()
	}
	if _, err := uuid.Parse(value); err != nil {
		return invalidID()
	}
	return nil
}

func invalidID() error {
	return domain.NewInvariant([]domain.FieldError{{Field: "id", Message: `"id" must be a valid UUID`}})
}
