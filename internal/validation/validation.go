// Package validation wraps a shared go-playground validator configured for
// the request DTOs of this service.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/spendlog/service/internal/apperr"
)

var validate = newValidator()

// DateTimeLocal is the layout checked by the datetime_local tag, the value of
// a browser datetime-local input.
const DateTimeLocal = "2006-01-02T15:04"

var dateTimeLocalRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Decimals validate as float64 so numeric tags like gt=0 apply.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// time.Parse accepts a one-digit hour, so the width is checked first.
	_ = v.RegisterValidation("datetime_local", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if !dateTimeLocalRe.MatchString(s) {
			return false
		}
		_, err := time.Parse(DateTimeLocal, s)
		return err == nil
	})

	return v
}

// Struct validates s and converts the first failure into an ErrValidation.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperr.Validation("%s", describe(verrs[0]))
	}
	return apperr.Validation("invalid request")
}

// Decode reads a JSON body into dst and validates it.
func Decode(r io.Reader, dst interface{}) error {
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return Struct(dst)
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s cannot be empty", field)
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be a positive number", field)
	case "gte":
		return fmt.Sprintf("%s must not be negative", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime", "datetime_local":
		return fmt.Sprintf("%s is not a valid date", field)
	case "uuid":
		return fmt.Sprintf("%s must be a UUID", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}
