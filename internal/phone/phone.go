package phone

import "strings"

// Digits strips everything except 0-9, so "+91 98765-43210" and "919876543210" compare equal.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Same reports whether two numbers match digits-only. Empty numbers never match.
func Same(a, b string) bool {
	da := Digits(a)
	return da != "" && da == Digits(b)
}
