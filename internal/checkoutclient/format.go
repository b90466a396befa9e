package checkoutclient

import "strings"

const (
	maxCardDigits = 16
	maxCVVDigits  = 4
)

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCardNumber keeps at most 16 digits and groups them in fours, so the
// result never exceeds 19 characters.
func FormatCardNumber(value string) string {
	digits := digitsOnly(value)
	if len(digits) > maxCardDigits {
		digits = digits[:maxCardDigits]
	}

	var b strings.Builder
	for i := 0; i < len(digits); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		end := min(i+4, len(digits))
		b.WriteString(digits[i:end])
	}
	return b.String()
}

// FormatExpiryDate renders typed digits as MM/YY, inserting the slash once two
// digits are present.
func FormatExpiryDate(value string) string {
	digits := digitsOnly(value)
	if len(digits) < 2 {
		return digits
	}
	rest := digits[2:]
	if len(rest) > 2 {
		rest = rest[:2]
	}
	return digits[:2] + "/" + rest
}

// FormatCVV strips non-digits and truncates to four characters.
func FormatCVV(value string) string {
	digits := digitsOnly(value)
	if len(digits) > maxCVVDigits {
		digits = digits[:maxCVVDigits]
	}
	return digits
}
