package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// ParseAmount parses a decimal money amount such as "12.50".
// NaN, infinities and malformed input fail with ErrInvalidAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return d, nil
}

// MaxAmount is the largest amount an expense, split or payment may carry.
// Amount columns are DECIMAL(12, 2).
var MaxAmount = decimal.RequireFromString("9999999999.99")

// validMoney reports whether d is strictly positive, at most MaxAmount, with no sub-cent part.
func validMoney(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThanOrEqual(MaxAmount) && d.Equal(d.Round(models.MinorUnits))
}

func checkAmount(d decimal.Decimal) error {
	if !validMoney(d) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, d.String())
	}
	return nil
}
