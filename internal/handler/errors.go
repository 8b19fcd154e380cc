package handler

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"flashcards/internal/apperr"
	"flashcards/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func init() {
	// Report binding failures under the names clients send, not Go field names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return field.Name
		})
	}
}

// respondError is the single place domain errors become HTTP responses.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	middleware.AbortWithError(c, logger, err)
}

// bindingError converts a gin binding failure into a ValidationError.
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := &apperr.ValidationError{}
		for _, fe := range verrs {
			out.Add(fe.Field(), describeTag(fe))
		}
		return out
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return apperr.NewValidationError("body", "request body is required")
	case errors.As(err, &syntaxErr):
		return apperr.NewValidationError("body", "malformed JSON")
	case errors.As(err, &typeErr):
		return apperr.NewValidationError(typeErr.Field, "has the wrong type")
	default:
		return apperr.NewValidationError("body", "invalid request")
	}
}

// queryBindingError is bindingError for query strings. Conversion failures carry no
// field name, so the parameter is found by matching its raw value.
func queryBindingError(c *gin.Context, target any, err error) error {
	var numErr *strconv.NumError
	if !errors.As(err, &numErr) {
		return bindingError(err)
	}

	t := reflect.TypeOf(target)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			name, _, _ := strings.Cut(t.Field(i).Tag.Get("form"), ",")
			if name == "" || name == "-" {
				continue
			}
			if values, ok := c.GetQueryArray(name); ok && slices.Contains(values, numErr.Num) {
				return apperr.NewValidationError(name, "must be an integer")
			}
		}
	}
	return apperr.NewValidationError("query", "invalid query parameter")
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
