package validation

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"CasaBid/internal/core/domain"
)

// Validator validates intake payloads and reports failures keyed by the
// JSON field name.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// New builds a Validator. now is the clock used for the age rule.
func New(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{validate: validator.New(validator.WithRequiredStructEnabled()), now: now}

	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// Registration only fails on an empty tag or nil func.
	_ = v.validate.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return ValidCPF(fl.Field().String())
	})
	_ = v.validate.RegisterValidation("adult", func(fl validator.FieldLevel) bool {
		dob, err := ParseDate(fl.Field().String())
		if err != nil {
			// Format problems are reported by the datetime tag.
			return true
		}
		return IsAdult(dob, v.now())
	})
	_ = v.validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		n := len(digitsOnly(fl.Field().String()))
		return n >= 10 && n <= 13
	})
	_ = v.validate.RegisterValidation("doctype", func(fl validator.FieldLevel) bool {
		return domain.DocumentType(fl.Field().String()).Valid()
	})
	_ = v.validate.RegisterValidation("notblank", validators.NotBlank)

	return v
}

// Struct validates s and converts failures into a *domain.ValidationError.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := domain.NewValidationError()
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), message(fe))
	}
	return verr
}

// PersonalInfo validates the first intake step.
func (v *Validator) PersonalInfo(info domain.PersonalInfo) error {
	return v.Struct(info)
}

// Documents validates the second intake step. The back image is required
// for national ids.
func (v *Validator) Documents(up domain.DocumentUpload) error {
	verr := domain.NewValidationError()
	if err := verr.Merge(v.Struct(up)); err != nil {
		return err
	}

	if msg := CheckImage(up.Front); msg != "" {
		verr.Add("document_front", msg)
	}
	if msg := CheckImage(up.Selfie); msg != "" {
		verr.Add("selfie", msg)
	}
	if up.Back != nil || up.DocumentType.RequiresBackImage() {
		if msg := CheckImage(up.Back); msg != "" {
			if up.Back == nil {
				msg = "back image is required for national id"
			}
			verr.Add("document_back", msg)
		}
	}

	return verr.OrNil()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "doctype":
		return "must be one of national_id, driver_license, passport, tax_id_photo"
	case "cpf":
		return "invalid CPF"
	case "adult":
		return "you must be at least 18 years old"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "phone":
		return "invalid phone number"
	case "email":
		return "invalid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	}
	return "is invalid"
}
