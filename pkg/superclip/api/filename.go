package api

import "strings"

// asciiFilename reduces a stored file name to printable ASCII so the
// plain filename parameter of Content-Disposition stays parseable by
// clients that ignore the RFC 5987 encoded variant. Characters outside
// that range become underscores; quotes and path separators are
// stripped outright.
func asciiFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '"' || r == '\\' || r == '/':
		case r >= 0x20 && r < 0x7f:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	cleaned := strings.Trim(b.String(), " .")
	if cleaned == "" {
		return "clip"
	}
	return cleaned
}
