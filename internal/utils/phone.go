package utils

import (
	"regexp"
	"strings"
)

const (
	MpesaCountryPrefix = "254"
	mpesaPhoneLength   = 12
)

var (
	nonDigitRegex   = regexp.MustCompile(`\D`)
	mpesaPhoneRegex = regexp.MustCompile(`^254[71]\d{8}$`)
)

// NormalizeMpesaPhone converts a free-form phone number to 2547XXXXXXXX / 2541XXXXXXXX form.
// The second return value is false when no rule matched or the result fails validation.
func NormalizeMpesaPhone(raw string) (string, bool) {
	digits := nonDigitRegex.ReplaceAllString(raw, "")

	var normalized string
	switch {
	case strings.HasPrefix(digits, MpesaCountryPrefix) && len(digits) == mpesaPhoneLength:
		normalized = digits
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		normalized = MpesaCountryPrefix + digits[1:]
	case (strings.HasPrefix(digits, "7") || strings.HasPrefix(digits, "1")) && len(digits) == 9:
		normalized = MpesaCountryPrefix + digits
	default:
		return "", false
	}

	if !IsValidMpesaPhone(normalized) {
		return "", false
	}
	return normalized, true
}

func IsValidMpesaPhone(phone string) bool {
	return mpesaPhoneRegex.MatchString(phone)
}

// E164 prefixes a normalized number with "+" for SMS providers.
func E164(phone string) string {
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+" + phone
}
