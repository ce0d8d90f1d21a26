package service

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/chirper/internal/apperror"
)

// nicknamePattern matches what the annotator accepts after '@'.
var nicknamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// newValidator returns a validator that reports JSON field names and knows
// the "nickname" tag.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("nickname", func(fl validator.FieldLevel) bool {
		return nicknamePattern.MatchString(fl.Field().String())
	})
	return v
}

func validateStruct(v *validator.Validate, s any) error {
	if err := v.Struct(s); err != nil {
		return apperror.FromValidator(err)
	}
	return nil
}
