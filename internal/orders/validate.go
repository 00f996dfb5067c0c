package orders

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/dshills/mecsis-mcp/pkg/types"
)

// newValidator builds the validator used for headers and items. Decimals
// are compared through their float value, which preserves the sign.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	// Report json names so messages match what callers sent
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		return types.OrderStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return types.PaymentMethod(fl.Field().String()).Valid()
	})
	return v
}

// validateSubmit checks the header and every item. The first failing
// struct is reported.
func (s *Service) validateSubmit(req *SubmitRequest) error {
	if err := s.validate.Struct(&req.Header); err != nil {
		return validationError("header", err)
	}
	for i := range req.Items {
		if err := s.validate.Struct(&req.Items[i]); err != nil {
			return validationError(fmt.Sprintf("items[%d]", i), err)
		}
	}
	for _, id := range req.CollaboratorIDs {
		if id <= 0 {
			return fmt.Errorf("%w: collaborator id %d is invalid", types.ErrValidation, id)
		}
	}
	return nil
}

// validationError turns validator output into an ErrValidation naming each
// failing field
func validationError(scope string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %s: %v", types.ErrValidation, scope, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := fe.Field() + " failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s: %s", types.ErrValidation, scope, strings.Join(msgs, ", "))
}
