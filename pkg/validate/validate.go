// Package validate holds the small field checks shared by the domain
// services. Failures are InvalidInput errors naming the JSON field.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
)

const MaxEmailLen = 256

// MaxID is the largest key an INTEGER column holds.
const MaxID = math.MaxInt32

// MaxAmount is the largest NUMERIC(12,2) amount.
var MaxAmount = decimal.New(999999999999, -2)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-.]{4,50}$`)
)

// Email reports whether s looks like a deliverable address.
func Email(s string) bool {
	return len(s) <= MaxEmailLen && emailPattern.MatchString(s)
}

// Phone reports whether s is digits with common separators.
func Phone(s string) bool {
	return phonePattern.MatchString(s)
}

// Required trims s and rejects it when empty or longer than max bytes.
func Required(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperrors.NewInvalidInputError(field + " is required")
	}
	if len(s) > max {
		return "", apperrors.NewInvalidInputError(fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return s, nil
}

// PositiveID rejects ids outside 1..MaxID.
func PositiveID(field string, id int) error {
	switch {
	case id <= 0:
		return apperrors.NewInvalidInputError(field + " must be greater than 0")
	case id > MaxID:
		return apperrors.NewInvalidInputError(fmt.Sprintf("%s must be at most %d", field, MaxID))
	}
	return nil
}

// Amount rejects negative amounts and amounts that do not fit in cents
// storage once rounded to two places.
func Amount(field string, d decimal.Decimal) error {
	switch {
	case d.IsNegative():
		return apperrors.NewInvalidInputError(field + " must not be negative")
	case d.Round(2).GreaterThan(MaxAmount):
		return apperrors.NewInvalidInputError(field + " must be at most " + MaxAmount.StringFixed(2))
	}
	return nil
}
