package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/wagers/internal/models"
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("choice", validateChoice)
	_ = validate.RegisterValidation("category", validateCategory)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

func validateChoice(fl validator.FieldLevel) bool {
	return models.ValidChoice(fl.Field().String())
}

func validateCategory(fl validator.FieldLevel) bool {
	return models.ValidCategory(fl.Field().String())
}
