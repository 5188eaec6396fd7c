package mailer

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"
)

// Message is one formatted email ready for submission.
type Message struct {
	FromName string
	From     string
	To       string
	Subject  string
	HTMLBody string
}

// compose renders the full RFC-822 message: headers, an encoded-word subject,
// and a base64 body. Base64 transfer encoding sidesteps dot-stuffing and
// charset pitfalls entirely; the terminating "." line can never collide with
// body content.
func compose(msg Message, now time.Time) string {
	var b strings.Builder

	from := msg.From
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", msg.FromName), msg.From)
	}

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.BEncoding.Encode("UTF-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")

	b.WriteString(wrapBase64(base64.StdEncoding.EncodeToString([]byte(msg.HTMLBody))))
	return b.String()
}

// wrapBase64 folds the encoded body at 76 columns per MIME convention.
func wrapBase64(encoded string) string {
	const lineLen = 76
	var b strings.Builder
	for len(encoded) > lineLen {
		b.WriteString(encoded[:lineLen])
		b.WriteString("\r\n")
		encoded = encoded[lineLen:]
	}
	b.WriteString(encoded)
	b.WriteString("\r\n")
	return b.String()
}
