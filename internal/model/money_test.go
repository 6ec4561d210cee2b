package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected Money
		wantErr  bool
	}{
		{name: "nil", input: nil, expected: 0},
		{name: "decimal string", input: "10.50", expected: 1050},
		{name: "integer string", input: "5", expected: 500},
		{name: "thousands separator", input: "1,234.56", expected: 123456},
		{name: "padded string", input: "  7.1 ", expected: 710},
		{name: "empty string", input: "", expected: 0},
		{name: "bytes from driver", input: []byte("12.30"), expected: 1230},
		{name: "float", input: 0.1, expected: 10},
		{name: "int64", input: int64(42), expected: 4200},
		{name: "decimal", input: decimal.RequireFromString("3.335"), expected: 334},
		{name: "json number", input: json.Number("99.99"), expected: 9999},
		{name: "garbage", input: "abc", wantErr: true},
		{name: "nan", input: math.NaN(), wantErr: true},
		{name: "bool", input: true, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMoney(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestCoerceMoney_FallsBackToZero(t *testing.T) {
	assert.Equal(t, Money(0), CoerceMoney("n/a"))
	assert.Equal(t, Money(0), CoerceMoney(struct{}{}))
	assert.Equal(t, Money(250), CoerceMoney("2.5"))
}

func TestMoney_Percent(t *testing.T) {
	assert.Equal(t, Money(1700), Money(2000).Percent(85))
	assert.Equal(t, Money(283), Money(333).Percent(85))
	assert.Equal(t, Money(1), Money(1).Percent(85))
	assert.Equal(t, Money(-1), Money(-1).Percent(85))
	assert.Equal(t, Money(0), Money(0).Percent(85))
}

func TestMoney_JSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Fee Money `json:"fee"`
	}{Fee: 1550})
	require.NoError(t, err)
	assert.JSONEq(t, `{"fee": 15.50}`, string(out))

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
		C Money `json:"c"`
		D Money `json:"d"`
		E Money `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "12.5", "b": 3, "c": null, "d": "abc", "e": [1]}`), &in))
	assert.Equal(t, Money(1250), in.A)
	assert.Equal(t, Money(300), in.B)
	assert.Equal(t, Money(0), in.C)
	assert.Equal(t, Money(0), in.D)
	assert.Equal(t, Money(0), in.E)
}

func TestMoney_ScanAndValue(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("20.00"))
	assert.Equal(t, Money(2000), m)

	require.NoError(t, m.Scan(float64(1.5)))
	assert.Equal(t, Money(150), m)

	require.NoError(t, m.Scan(nil))
	assert.Equal(t, Money(0), m)

	assert.Error(t, m.Scan(true))

	v, err := Money(1234).Value()
	require.NoError(t, err)
	assert.Equal(t, "12.34", v)
}
