package email

import (
	"fmt"
	"strings"
)

const shortIDLength = 8

// ReceiptSubject builds the subject line, shortening long document ids.
func ReceiptSubject(orderID string) string {
	shortID := orderID
	if len(orderID) > shortIDLength {
		shortID = orderID[:shortIDLength]
	}
	return fmt.Sprintf("Your ProductVista order #%s", shortID)
}

// BuildMessage assembles an RFC 5322 message with an HTML body.
func BuildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
