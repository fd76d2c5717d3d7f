package integrations

import (
	"strings"
	"unicode"
)

const WhatsAppSuffix = "@s.whatsapp.net"

func digitsOnly(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatWhatsAppPhone normalises a Brazilian number to the Evolution chat id
// form. Bare 11 digit numbers get the 55 country code; bare 10 digit numbers
// also get a mobile 9 after the area code.
func FormatWhatsAppPhone(phone string) string {
	if strings.TrimSpace(phone) == "" {
		return ""
	}
	clean := digitsOnly(strings.TrimSuffix(strings.TrimSpace(phone), WhatsAppSuffix))
	if clean == "" {
		return ""
	}
	switch {
	case len(clean) == 11 && !strings.HasPrefix(clean, "55"):
		clean = "55" + clean
	case len(clean) == 10 && !strings.HasPrefix(clean, "55"):
		clean = "55" + clean[:2] + "9" + clean[2:]
	}
	return clean + WhatsAppSuffix
}

// DisplayPhone renders a chat id as +55 (AA) NNNNN-NNNN when it carries a
// full 13 digit Brazilian mobile number, and returns it bare otherwise.
func DisplayPhone(chatID string) string {
	clean := strings.TrimSpace(strings.Replace(chatID, WhatsAppSuffix, "", 1))
	if len(clean) == 13 && strings.HasPrefix(clean, "55") && isDigits(clean) {
		rest := clean[2:]
		return "+55 (" + rest[:2] + ") " + rest[2:7] + "-" + rest[7:11]
	}
	return clean
}

func ValidPhone(phone string) bool {
	clean := digitsOnly(phone)
	return len(clean) >= 10 && len(clean) <= 13
}

func isDigits(value string) bool {
	for _, r := range value {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return value != ""
}
