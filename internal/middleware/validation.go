package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/queue-api/internal/model"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
)

var validationMessages = map[string]string{
	"required":       "is required",
	"email":          "must be a valid email",
	"min":            "is too short",
	"max":            "is too long",
	"gte":            "must not be negative",
	"patient_status": "must be one of pending, in_progress, delayed, done",
}

// RegisterValidators makes gin's validator report JSON field names and adds
// the patient_status tag. Call once before serving.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v.RegisterValidation("patient_status", func(fl validator.FieldLevel) bool {
		return model.PatientStatus(fl.Field().String()).Valid()
	})
}

// BindingError converts a ShouldBind failure into a client error naming the
// offending fields.
func BindingError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.BadRequest("invalid request body", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg, ok := validationMessages[e.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed on %s", e.Tag())
		}
		msgs = append(msgs, e.Field()+" "+msg)
	}
	return apperrors.Validation(strings.Join(msgs, "; "))
}
