package app

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"reconcile/internal/service"
)

// RegisterValidators adds the custom binding rules used by request structs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	return v.RegisterValidation("upi", func(fl validator.FieldLevel) bool {
		return service.ValidUPIID(fl.Field().String())
	})
}
