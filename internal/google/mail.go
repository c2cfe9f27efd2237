package google

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Header is one MIME header from a Gmail message payload.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HeaderValue returns the value of the named header, case-insensitive. Empty
// string when absent.
func HeaderValue(headers []Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// BuildMessage assembles a plain-text RFC 2822 message.
func BuildMessage(to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "%s\r\n", body)
	return b.String()
}

// BuildReply assembles a plain-text reply. inReplyTo is the Message-ID of the
// original; when present it threads the reply via In-Reply-To/References.
func BuildReply(to, subject, inReplyTo, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	if inReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", inReplyTo)
		fmt.Fprintf(&b, "References: %s\r\n", inReplyTo)
	}
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "%s\r\n", body)
	return b.String()
}

// EncodeRaw encodes a message the way Gmail's send endpoint expects it.
func EncodeRaw(message string) string {
	return base64.URLEncoding.EncodeToString([]byte(message))
}
