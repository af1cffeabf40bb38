package utils

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidAmount = errors.New("invalid amount")

type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

var SupportedCurrencies = map[string]Currency{
	"KES": {Code: "KES", Symbol: "KES ", Name: "Kenyan Shilling"},
	"USD": {Code: "USD", Symbol: "$", Name: "US Dollar"},
}

func FormatCurrency(amount float64, currencyCode string) string {
	currency, exists := SupportedCurrencies[currencyCode]
	if !exists {
		currency = SupportedCurrencies[DefaultCurrency]
	}

	amount = math.Round(amount*100) / 100
	return fmt.Sprintf("%s%.2f", currency.Symbol, amount)
}

// ParseWholeAmount parses a numeric amount and rounds it to whole currency units.
// Non-numeric, non-finite, non-positive and sub-unit amounts are rejected.
func ParseWholeAmount(raw string) (int64, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, ErrInvalidAmount
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	return WholeAmount(value)
}

func WholeAmount(value float64) (int64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, ErrInvalidAmount
	}

	rounded := math.Round(value)
	if rounded < 1 || rounded > math.MaxInt32 {
		return 0, ErrInvalidAmount
	}
	return int64(rounded), nil
}
