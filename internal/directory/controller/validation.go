package controller

import (
	"errors"
	"fmt"
	"strings"

	e "github.com/gartstein/dexapp/internal/directory/errors"
	"github.com/gartstein/dexapp/internal/directory/models"
	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("taxid", isTaxID)
	return v
}

func isTaxID(fl validator.FieldLevel) bool {
	return models.IsTaxID(fl.Field().String())
}

// invalid converts a validator failure into ErrInvalidInput with a readable
// list of the offending fields.
func invalid(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	}
	problems := make([]string, 0, len(ve))
	for _, fe := range ve {
		problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", e.ErrInvalidInput, strings.Join(problems, ", "))
}

func blank[T ~string](p *T) bool {
	return p != nil && *p == ""
}
