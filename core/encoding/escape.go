// Package encoding provides the text escaping helpers the XML
// serializer uses.
package encoding

import "strings"

// EscapeXMLText escapes the basic XML entities for element text.
func EscapeXMLText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// EscapeXMLAttr escapes text for use in XML attribute values. Includes
// quote escaping in addition to the basic entities.
func EscapeXMLAttr(s string) string {
	s = EscapeXMLText(s)
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
