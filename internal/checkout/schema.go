package checkout

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-checkout/backend/internal/models"
)

// Submission is the payment form as submitted by the client. The same struct
// and its validate tags are used by the request builder and by the server, so
// a client cannot build a request the server would reject on shape.
type Submission struct {
	PlanID         int64      `json:"planId" validate:"required,gt=0"`
	Amount         string     `json:"amount" validate:"required,amount"`
	CardholderName string     `json:"cardholderName" validate:"required"`
	Email          string     `json:"email" validate:"required,email"`
	CardNumber     string     `json:"cardNumber" validate:"min=16,max=19"`
	ExpiryDate     string     `json:"expiryDate" validate:"expiry"`
	CVV            string     `json:"cvv" validate:"min=3,max=4"`
	Terms          Acceptance `json:"terms" validate:"accepted"`
}

// Acceptance is the terms checkbox. Only the JSON literal true decodes to an
// accepted value; false, null, strings and numbers all decode to not accepted.
type Acceptance bool

// UnmarshalJSON never fails so that a malformed terms value is reported as
// "terms not accepted" instead of a decoding error.
func (a *Acceptance) UnmarshalJSON(b []byte) error {
	*a = Acceptance(bytes.Equal(bytes.TrimSpace(b), []byte("true")))
	return nil
}

// Normalize trims surrounding whitespace from the free-text fields.
func (s Submission) Normalize() Submission {
	s.Amount = strings.TrimSpace(s.Amount)
	s.CardholderName = strings.TrimSpace(s.CardholderName)
	s.Email = strings.TrimSpace(s.Email)
	return s
}

// Sanitize returns the card-free fields that may be persisted. The amount is
// rewritten with exactly two fractional digits.
func (s Submission) Sanitize() models.PaymentFields {
	amount := s.Amount
	if d, err := decimal.NewFromString(amount); err == nil {
		amount = d.StringFixed(2)
	}
	return models.PaymentFields{
		PlanID:         s.PlanID,
		Amount:         amount,
		CardholderName: s.CardholderName,
		Email:          s.Email,
	}
}

// FieldError is a single field-level violation.
type FieldError struct {
	Field   string `json:"field"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Reasons reported in FieldError.Reason.
const (
	ReasonRequired         = "required"
	ReasonInvalid          = "invalid"
	ReasonInvalidType      = "invalid_type"
	ReasonInvalidEmail     = "invalid_email"
	ReasonInvalidAmount    = "invalid_amount"
	ReasonInvalidFormat    = "invalid_format"
	ReasonTooShort         = "too_short"
	ReasonTooLong          = "too_long"
	ReasonTermsNotAccepted = "terms_not_accepted"
)

// ValidationError lists every field that failed validation, in field order.
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	return "invalid payment data: " + strings.Join(parts, ", ")
}

// Field returns the violation reported for name, if any.
func (e *ValidationError) Field(name string) (FieldError, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldError{}, false
}

// TermsNotAccepted reports whether the terms checkbox was among the failures.
func (e *ValidationError) TermsNotAccepted() bool {
	f, ok := e.Field("terms")
	return ok && f.Reason == ReasonTermsNotAccepted
}

var (
	expiryPattern = regexp.MustCompile(`^\d{2}/\d{2}$`)

	// amountPattern matches what a NUMERIC(10,2) column stores without
	// rounding: up to 8 integer digits and at most 2 fractional digits.
	amountPattern = regexp.MustCompile(`^\d{1,8}(\.\d{1,2})?$`)
)

// Schema validates submissions. It is safe for concurrent use.
type Schema struct {
	v *validator.Validate
}

// NewSchema builds a Schema with the checkout-specific rules registered.
func NewSchema() *Schema {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("expiry", func(fl validator.FieldLevel) bool {
		return expiryPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		return amountPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("accepted", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.Bool && fl.Field().Bool()
	})

	return &Schema{v: v}
}

var defaultSchema = NewSchema()

// Validate checks sub against the default schema.
func Validate(sub Submission) error {
	return defaultSchema.Validate(sub)
}

// Validate returns nil or a *ValidationError describing every violation.
func (s *Schema) Validate(sub Submission) error {
	err := s.v.Struct(sub)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate submission: %w", err)
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, toFieldError(fe))
	}
	return out
}

func toFieldError(fe validator.FieldError) FieldError {
	f := FieldError{Field: fe.Field()}
	switch fe.Tag() {
	case "required":
		f.Reason, f.Message = ReasonRequired, "is required"
	case "gt":
		f.Reason, f.Message = ReasonInvalid, "must be a positive number"
	case "email":
		f.Reason, f.Message = ReasonInvalidEmail, "must be a valid email address"
	case "amount":
		f.Reason, f.Message = ReasonInvalidAmount, "must be a non-negative amount with at most 8 integer and 2 decimal digits"
	case "expiry":
		f.Reason, f.Message = ReasonInvalidFormat, "must match MM/YY"
	case "min":
		f.Reason, f.Message = ReasonTooShort, fmt.Sprintf("must contain at least %s character(s)", fe.Param())
	case "max":
		f.Reason, f.Message = ReasonTooLong, fmt.Sprintf("must contain at most %s character(s)", fe.Param())
	case "accepted":
		f.Reason, f.Message = ReasonTermsNotAccepted, "You must accept the terms and conditions"
	default:
		f.Reason, f.Message = ReasonInvalid, "is invalid"
	}
	return f
}
