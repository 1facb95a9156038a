package validators

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
)

// MaxAmount is the largest value a numeric(10,2) column holds.
var MaxAmount = decimal.RequireFromString("99999999.99")

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func registerMoneyValidations(v *validator.Validate) {
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		amount, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && amount.IsPositive() && validAmount(amount)
	})
	_ = v.RegisterValidation("money_nonneg", func(fl validator.FieldLevel) bool {
		amount, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && !amount.IsNegative() && validAmount(amount)
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
}

func validAmount(amount decimal.Decimal) bool {
	if amount.GreaterThan(MaxAmount) {
		return false
	}
	return amount.Exponent() >= -2 || amount.Equal(amount.Round(2))
}

// ParseAmount parses a form value into a positive two-decimal amount.
func ParseAmount(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: "is required"})
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() || !validAmount(amount) {
		return decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: "must be a positive amount with at most two decimals"})
	}
	return amount.Round(2), nil
}

// ParseNonNegativeAmount is ParseAmount for fields where zero is accepted.
func ParseNonNegativeAmount(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: "is required"})
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() || !validAmount(amount) {
		return decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: "must be a non-negative amount with at most two decimals"})
	}
	return amount.Round(2), nil
}
