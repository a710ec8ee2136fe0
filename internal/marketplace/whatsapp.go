package marketplace

import (
	"net/url"
	"strings"

	"github.com/picha-hub/picha_portal/internal/identity"
)

const whatsAppBase = "https://wa.me/"

// WhatsAppLink builds a wa.me deep link for phone with an optional
// prefilled message. Kenyan local formats are accepted.
func WhatsAppLink(phone, message string) (string, error) {
	msisdn, err := identity.NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	link := whatsAppBase + msisdn
	if message = strings.TrimSpace(message); message != "" {
		link += "?text=" + url.QueryEscape(message)
	}
	return link, nil
}

// GreetingFor is the default opening message sent from the portal.
func GreetingFor(sender *identity.Identity, subject string) string {
	var b strings.Builder
	b.WriteString("Hi")
	if sender != nil && sender.Name != "" {
		b.WriteString(", this is ")
		b.WriteString(sender.Name)
	}
	b.WriteString(" from Picha Hub")
	if subject = strings.TrimSpace(subject); subject != "" {
		b.WriteString(" about ")
		b.WriteString(subject)
	}
	b.WriteString(".")
	return b.String()
}
