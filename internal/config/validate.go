package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// IsInvalidConfigError reports whether err came from Validate.
func IsInvalidConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("http_endpoint", func(fl validator.FieldLevel) bool {
		return isHTTPURL(fl.Field().String())
	})

	return v
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Validate checks every constraint and reports all violations at once.
func (c Config) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, fe := range fieldErrs {
			problems = append(problems, describe(fe))
		}
	}

	if v := c.FetchVisibilityTimeoutSecs; v != nil && (*v < 1 || *v > 43200) {
		problems = append(problems, fmt.Sprintf("fetch-visibility-timeout-secs: must be between 1 and 43200, got %d", *v))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s: must be at least %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s: must be at most %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s: must be greater than %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "http_endpoint":
		return fmt.Sprintf("%s: must be an http(s) URL, got %q", fe.Field(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s: failed %q check, got %v", fe.Field(), fe.Tag(), fe.Value())
	}
}
