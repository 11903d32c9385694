package leads

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so API clients see the keys they sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError describes one rejected offer field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// OfferError lists every reason an offer was rejected. It matches ErrInvalidOffer.
type OfferError struct {
	Fields []FieldError
}

func (e *OfferError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Rule))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidOffer, strings.Join(parts, "; "))
}

func (e *OfferError) Unwrap() error { return ErrInvalidOffer }

// ValidateOffer normalises o and checks that the name and both lists are present.
func ValidateOffer(o *Offer) error {
	if o == nil {
		return fmt.Errorf("%w: offer is required", ErrInvalidOffer)
	}

	o.Normalize()

	err := validate.Struct(o)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidOffer, err)
	}

	out := &OfferError{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), "Offer.")
		out.Fields = append(out.Fields, FieldError{Field: field, Rule: fe.Tag()})
	}
	return out
}

// LoadOffer reads an offer from a YAML or JSON file and validates it.
func LoadOffer(path string) (*Offer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading offer file %q: %w", path, err)
	}

	var offer Offer
	if err := yaml.Unmarshal(data, &offer); err != nil {
		return nil, fmt.Errorf("%w: parsing %q: %w", ErrInvalidOffer, path, err)
	}

	if err := ValidateOffer(&offer); err != nil {
		return nil, err
	}

	return &offer, nil
}
