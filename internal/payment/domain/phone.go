package domain

import "strings"

const countryCode = "+254"

// NormalizePhone rewrites a customer-entered phone number into the
// +254XXXXXXXXX form the STK push API expects. A leading 0 is replaced
// with the country code; a bare 254 prefix gains the plus; anything
// without a recognized prefix gets the country code prepended.
func NormalizePhone(raw string) string {
	phone := strings.TrimSpace(raw)
	switch {
	case phone == "":
		return phone
	case strings.HasPrefix(phone, countryCode):
		return phone
	case strings.HasPrefix(phone, "254"):
		return "+" + phone
	case strings.HasPrefix(phone, "0"):
		return countryCode + phone[1:]
	default:
		return countryCode + phone
	}
}
