package observability

import (
	"strings"
	"unicode"
)

const (
	defaultStringLimit = 256
	orderNumberLimit   = 32
	entityIDLimit      = 64
)

// stripControl drops control characters other than common whitespace and caps the rune count.
func stripControl(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}
	cleaned := make([]rune, 0, min(len(value), limit))
	for _, r := range value {
		if len(cleaned) == limit {
			break
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		cleaned = append(cleaned, r)
	}
	return string(cleaned)
}

// keepOnly retains runes accepted by allow, up to limit.
func keepOnly(value string, limit int, allow func(rune) bool) string {
	var b strings.Builder
	n := 0
	for _, r := range value {
		if n == limit {
			break
		}
		if allow(r) {
			b.WriteRune(r)
			n++
		}
	}
	return b.String()
}

// SanitizeRoute removes control characters and bounds the length of a route.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return stripControl(route, 180)
}

// SanitizeMethod removes control characters in HTTP methods.
func SanitizeMethod(method string) string {
	return stripControl(method, 10)
}

// SanitizeUserID bounds Firebase uids written to request logs.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return stripControl(uid, entityIDLimit)
}

// SanitizeOrderNumber upper-cases a client supplied order number and keeps only the
// characters of the ORD-YYYYMMDD-XXXXXXXX format.
func SanitizeOrderNumber(orderNo string) string {
	return keepOnly(strings.ToUpper(strings.TrimSpace(orderNo)), orderNumberLimit, func(r rune) bool {
		return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-'
	})
}

// SanitizeEntityID keeps the characters valid in order, product and asset identifiers.
func SanitizeEntityID(id string) string {
	return keepOnly(strings.TrimSpace(id), entityIDLimit, func(r rune) bool {
		return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_')
	})
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	email = stripControl(strings.TrimSpace(email), defaultStringLimit)
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	first := []rune(email[:at])[0]
	return string(first) + "***" + email[at:]
}

// SanitizeField normalises a structured log value by field name. Customer contact details are
// masked and identifiers are restricted to their alphabet. Non-string values pass through.
func SanitizeField(key string, value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	switch key {
	case "orderNo":
		return SanitizeOrderNumber(s)
	case "orderId", "productId", "assetId", "uid":
		return SanitizeEntityID(s)
	case "email":
		return MaskEmail(s)
	case "phone":
		if len(s) <= 4 {
			return "***"
		}
		return "***" + s[len(s)-4:]
	default:
		return stripControl(s, defaultStringLimit)
	}
}
