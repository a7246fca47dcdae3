package ussd

import "strings"

// NormalizePhone converts local and bare international Kenyan numbers to +254 form.
//
//	0712345678    -> +254712345678
//	254712345678  -> +254712345678
//	+254712345678 -> +254712345678
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.NewReplacer(" ", "", "-", "").Replace(phone)
	switch {
	case phone == "":
		return ""
	case strings.HasPrefix(phone, "+"):
		return phone
	case strings.HasPrefix(phone, "0"):
		return "+254" + phone[1:]
	default:
		return "+" + phone
	}
}
