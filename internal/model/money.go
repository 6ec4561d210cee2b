package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (cents).
type Money int64

func ParseMoney(value interface{}) (Money, error) {
	var d decimal.Decimal

	switch v := value.(type) {
	case nil:
		return 0, nil
	case Money:
		return v, nil
	case string:
		return parseMoneyString(v)
	case []byte:
		return parseMoneyString(string(v))
	case json.Number:
		return parseMoneyString(v.String())
	case decimal.Decimal:
		d = v
	case int:
		d = decimal.NewFromInt(int64(v))
	case int32:
		d = decimal.NewFromInt32(v)
	case int64:
		d = decimal.NewFromInt(v)
	case float32:
		return ParseMoney(float64(v))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("invalid amount %v", v)
		}
		d = decimal.NewFromFloat(v)
	default:
		return 0, fmt.Errorf("unsupported amount type %T", value)
	}
	return fromDecimal(d), nil
}

// CoerceMoney treats anything unparsable as zero.
func CoerceMoney(value interface{}) Money {
	m, err := ParseMoney(value)
	if err != nil {
		return 0
	}
	return m
}

func parseMoneyString(raw string) (Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	raw = strings.ReplaceAll(raw, ",", "")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	return fromDecimal(d), nil
}

func fromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(2).Round(0).IntPart())
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// Percent returns the share of m, rounded half-up to the cent.
func (m Money) Percent(pct int64) Money {
	v := int64(m) * pct
	if v >= 0 {
		return Money((v + 50) / 100)
	}
	return Money((v - 50) / 100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null. Anything else
// decodes as zero instead of failing the whole record.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*m = 0
			return nil
		}
		*m = CoerceMoney(s)
		return nil
	}
	*m = CoerceMoney(json.Number(data))
	return nil
}

func (m *Money) Scan(src interface{}) error {
	parsed, err := ParseMoney(src)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
