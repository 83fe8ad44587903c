package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-playground/validator/v10"
)

var (
	// Vietnamese mobile numbers: 0 or +84, a mobile prefix digit, eight more digits.
	vnPhonePattern = regexp.MustCompile(`^(0|\+84)(3|5|7|8|9)\d{8}$`)
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Validator checks shipping details in field order and stops at the first failure.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("vnphone", func(fl validator.FieldLevel) bool {
		return vnPhonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("basicemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Validate trims info and returns the cleaned copy, or a *domain.ValidationError
// naming the first field that failed: fullName, phone, email, address.
func (v *Validator) Validate(info domain.ShippingInfo) (domain.ShippingInfo, error) {
	info = trimShipping(info)

	err := v.validate.Struct(info)
	if err == nil {
		return info, nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return info, &domain.ValidationError{Field: fieldErrs[0].Field()}
	}
	return info, err
}

func trimShipping(info domain.ShippingInfo) domain.ShippingInfo {
	info.FullName = strings.TrimSpace(info.FullName)
	info.Phone = strings.Join(strings.Fields(info.Phone), "")
	info.Email = strings.TrimSpace(info.Email)
	info.Address = strings.TrimSpace(info.Address)
	info.Note = strings.TrimSpace(info.Note)
	return info
}
