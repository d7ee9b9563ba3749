package validator

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	v10 "github.com/go-playground/validator/v10"
)

var phoneRe = regexp.MustCompile(`^\+?\d{9,15}$`)

var (
	once sync.Once
	v    *v10.Validate
)

// New returns the shared validator with the portal's custom tags registered.
func New() *v10.Validate {
	once.Do(func() {
		v = v10.New(v10.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonName)
		_ = v.RegisterValidation("phone", func(fl v10.FieldLevel) bool {
			return phoneRe.MatchString(fl.Field().String())
		})
	})
	return v
}

// ValidateStruct validates s and flattens failures into map[field]message,
// keyed by the field's JSON name.
func ValidateStruct(s any) (map[string]string, error) {
	err := New().Struct(s)
	if err == nil {
		return nil, nil
	}
	ve, ok := err.(v10.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}, err
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = msgForTag(fe)
	}
	return fields, err
}

func msgForTag(fe v10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "phone":
		return "must be a valid phone number"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "numeric":
		return "must contain digits only"
	default:
		return fe.Error()
	}
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
