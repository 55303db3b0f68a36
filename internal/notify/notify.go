// Package notify builds the outbound artifacts for invitations: the
// accept link embedded in emails and the WhatsApp share link admins can
// forward when the invitee has no email address.
package notify

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultBaseURL = "http://localhost:8080"

// InviteLink builds the invitee-facing accept URL carrying the raw token.
func InviteLink(baseURL, token string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return fmt.Sprintf("%s/invite?token=%s", base, url.QueryEscape(token))
}

// InviteEmailBody renders the plain-text email body for an invite link.
func InviteEmailBody(link, propertyName string) string {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	if propertyName != "" {
		fmt.Fprintf(&b, "You have been invited to join %s on EstateFlow.\n\n", propertyName)
	} else {
		b.WriteString("You have been invited to join EstateFlow.\n\n")
	}
	b.WriteString("Open the link below to set your password and activate your account:\n\n")
	b.WriteString(link)
	b.WriteString("\n\nThe link expires after a limited time. If you were not expecting this invitation you can ignore this email.\n")
	return b.String()
}

// WhatsAppLink builds a wa.me share URL pre-filled with the invite link,
// for invitees reached by phone number instead of email. The phone number
// is reduced to digits as wa.me requires.
func WhatsAppLink(phoneNumber, inviteLink, propertyName string) string {
	digits := digitsOnly(phoneNumber)
	text := "You have been invited to EstateFlow"
	if propertyName != "" {
		text = fmt.Sprintf("You have been invited to %s on EstateFlow", propertyName)
	}
	text = fmt.Sprintf("%s. Accept here: %s", text, inviteLink)

	if digits == "" {
		return fmt.Sprintf("https://wa.me/?text=%s", url.QueryEscape(text))
	}
	return fmt.Sprintf("https://wa.me/%s?text=%s", digits, url.QueryEscape(text))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
