// Package encoding provides shared text escaping utilities for rendered markup.
package encoding

import "strings"

// EscapeText escapes the basic entities for HTML or XML text content.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// EscapeAttr escapes text for use inside a quoted markup attribute.
// Both quote styles are escaped; rendered fragments use single-quoted
// attributes throughout, but note text is also copied into data
// attributes of either style by downstream readers.
func EscapeAttr(s string) string {
	s = EscapeText(s)
	s = strings.ReplaceAll(s, "'", "&#39;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
