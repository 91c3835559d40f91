package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/evolvere-edu/evolvere/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"
)

// InitValidators registers this package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)
}

// roleValidation checks that the provided role is a known role value.
func roleValidation(fl validator.FieldLevel) bool {
	role := int(fl.Field().Int())
	for _, r := range AllRoles {
		if role == r {
			return true
		}
	}
	return false
}
