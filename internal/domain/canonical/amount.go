package canonical

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// AmountMinorUnits normalizes a monetary value decoded from JSON into
// integer minor-currency units. Providers send floats or strings in
// major units, or integers already in minor units; alreadyMinor tells
// which convention the source uses.
func AmountMinorUnits(raw interface{}, alreadyMinor bool) (int64, bool) {
	var d decimal.Decimal

	switch v := raw.(type) {
	case float64:
		d = decimal.NewFromFloat(v)
	case int64:
		d = decimal.NewFromInt(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case json.Number:
		parsed, err := decimal.NewFromString(v.String())
		if err != nil {
			return 0, false
		}
		d = parsed
	case string:
		if v == "" {
			return 0, false
		}
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return 0, false
		}
		d = parsed
	default:
		return 0, false
	}

	if !alreadyMinor {
		d = d.Shift(2)
	}
	return d.Round(0).IntPart(), true
}
