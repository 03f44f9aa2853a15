// Package validate wraps go-playground/validator with the project's custom tags and
// turns field errors into classified validation errors.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

var (
	once     sync.Once
	instance *validator.Validate
	initErr  error
)

// validAliasName accepts appliance alias names: uppercase letters, digits and underscores.
func validAliasName(fl validator.FieldLevel) bool {
	return domain.IsAliasName(fl.Field().String())
}

// validMAC accepts colon or dash separated 48-bit MAC addresses.
func validMAC(fl validator.FieldLevel) bool {
	_, err := domain.NormalizeMAC(fl.Field().String())
	return err == nil
}

// Register adds the custom tags to v.
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("alias_name", validAliasName); err != nil {
		return err
	}
	return v.RegisterValidation("hw_mac", validMAC)
}

// New returns a validator with the custom tags registered.
func New() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := Register(v); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	return v, nil
}

func shared() (*validator.Validate, error) {
	once.Do(func() {
		instance, initErr = New()
	})
	return instance, initErr
}

// Struct validates s and reports the first failing field as a domain validation error.
func Struct(s any) error {
	v, err := shared()
	if err != nil {
		return err
	}
	err = v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.WrapError(domain.ErrKindValidation, err, "invalid request")
	}
	return domain.NewError(domain.ErrKindValidation, "%s", message(fieldErrs[0]))
}

func message(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "alias_name":
		return field + " must contain only uppercase letters, digits and underscores"
	case "hw_mac":
		return "Invalid MAC address format"
	case "ipv4":
		return field + " must be an IPv4 address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
