package dns

import (
	"strings"
)

// NormalizeName lowercases an FQDN and strips a trailing dot.
// e.g. "App.Example.COM." → "app.example.com"
func NormalizeName(fqdn string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(fqdn), "."))
}

// SameName reports whether two hostnames refer to the same FQDN.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
