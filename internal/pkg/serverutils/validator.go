package serverutils

import (
	"longevity-chat-be/internal/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct checks request DTO tags and reports the first violation
// as InvalidArgument.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return apperror.InvalidArgument(err.Error())
	}
	return nil
}
