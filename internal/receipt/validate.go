package receipt

import (
	"errors"
	"strings"
)

var (
	// ErrMerchantRequired is returned when a manual entry has no merchant
	ErrMerchantRequired = errors.New("merchant is required")

	// ErrInvalidTotal is returned when a manual entry has no positive total
	ErrInvalidTotal = errors.New("total must be greater than zero")
)

// ValidateManual rejects obviously invalid hand-entered fields before they
// reach the normalizer. Extraction results are never validated this way.
func ValidateManual(fields PartialFields) error {
	var errs []error
	if strings.TrimSpace(fields.Merchant) == "" {
		errs = append(errs, ErrMerchantRequired)
	}
	if fields.Total == nil || !isFinite(*fields.Total) || *fields.Total <= 0 {
		errs = append(errs, ErrInvalidTotal)
	}
	return errors.Join(errs...)
}

// IsValidationError reports whether err came from ValidateManual
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMerchantRequired) || errors.Is(err, ErrInvalidTotal)
}
