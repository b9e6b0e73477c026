// Package validate is the default schema validation collaborator. A schema
// reference is a struct value (or pointer) whose fields carry json and
// validate tags; the request's parameter bag is decoded into a fresh value
// of that type and checked with go-playground/validator.
package validate

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Validator decodes and validates request parameters against struct schemas
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator that reports fields by their json names
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate implements handler.Validator. On success the returned request
// carries a pointer to the decoded schema value in Input.
func (v *Validator) Validate(schema interface{}, req *exchange.Request) (*exchange.Request, *exchange.Response) {
	t := reflect.TypeOf(schema)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, exchange.InternalError(fmt.Sprintf("schema must be a struct, got %T", schema))
	}

	target := reflect.New(t).Interface()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           target,
	})
	if err != nil {
		return nil, exchange.InternalError(err.Error())
	}
	if err := decoder.Decode(input(req)); err != nil {
		return nil, exchange.Failure(http.StatusBadRequest, exchange.CodeValidationFailed,
			"The request contains invalid data", map[string]interface{}{"decode": err.Error()})
	}

	if err := v.validate.Struct(target); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, exchange.InternalError(err.Error())
		}
		return nil, exchange.Failure(http.StatusBadRequest, exchange.CodeValidationFailed,
			"The request contains invalid data", map[string]interface{}{"fields": fields(verrs)})
	}

	validated := *req
	validated.Input = target
	return &validated, nil
}

// input merges the parameter bag with a map body, the body winning
func input(req *exchange.Request) map[string]interface{} {
	bag := make(map[string]interface{}, len(req.Params))
	for k, val := range req.Params {
		bag[k] = val
	}
	if body, ok := req.Body.(map[string]interface{}); ok {
		for k, val := range body {
			bag[k] = val
		}
	}
	return bag
}

// fields groups validation failures by field name
func fields(verrs validator.ValidationErrors) map[string][]string {
	out := make(map[string][]string)
	for _, fe := range verrs {
		out[fe.Field()] = append(out[fe.Field()], message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "email":
		return "must be a valid email address"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
