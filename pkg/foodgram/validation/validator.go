// Package validation owns the shared validator instance, the custom rules
// used by request structs, and the translation of validator failures into
// apierr validation errors.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	colorPattern    = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	slugPattern     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
)

// ReservedUsernames cannot be registered because they collide with routes.
var ReservedUsernames = []string{"me", "subscriptions", "set_password"}

// GetValidator returns the process-wide validator with custom rules registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		if err := RegisterRules(validate); err != nil {
			panic(fmt.Sprintf("validation: register rules: %v", err))
		}
	})
	return validate
}

// RegisterRules installs the foodgram rules and JSON field naming on v.
func RegisterRules(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)

	rules := map[string]validator.Func{
		"tagcolor": func(fl validator.FieldLevel) bool {
			return colorPattern.MatchString(fl.Field().String())
		},
		"slug": func(fl validator.FieldLevel) bool {
			return slugPattern.MatchString(fl.Field().String())
		},
		"username": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if !usernamePattern.MatchString(s) {
				return false
			}
			for _, r := range ReservedUsernames {
				if strings.EqualFold(s, r) {
					return false
				}
			}
			return true
		},
		"unit": func(fl validator.FieldLevel) bool {
			return models.IsMeasurementUnit(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// RegisterGin installs the same rules on gin's binding validator so that
// `binding:"..."` tags can use them.
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return RegisterRules(v)
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// Struct validates s and returns the first failure as an apierr validation error.
func Struct(s interface{}) error {
	if err := GetValidator().Struct(s); err != nil {
		return Translate(err)
	}
	return nil
}

// Translate converts binding and validator errors into an apierr validation
// error naming the first offending field.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apierr.Validation(fe.Field(), message(fe))
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return apierr.Validation(typeErr.Field, "invalid type, expected "+typeErr.Type.String())
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return apierr.Validation("body", "malformed JSON body")
	}

	return apierr.Validation("body", err.Error())
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "tagcolor":
		return "must be a hex color like #E26C2D"
	case "slug":
		return "may contain only letters, digits, hyphens and underscores"
	case "username":
		return "may contain only letters, digits and @/./+/-/_ and must not be a reserved name"
	case "unit":
		return "unknown measurement unit"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
