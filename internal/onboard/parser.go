package onboard

import (
	"regexp"
	"strings"

	"github.com/kayz/copydesk/internal/notify"
)

// headerMarkers identify an account-added notification. The notifier bot
// has changed its title wording before, so several spellings are accepted.
var headerMarkers = []string{
	"new account",
	"account added",
	"account created",
}

// lineRe extracts label/value pairs from plain-text notification bodies.
// Labels may be wrapped in markdown emphasis by the sending bot.
var lineRe = regexp.MustCompile(`(?mi)^\s*[*_]*(agency|client|broker|account\s*#?|username|password)[*_]*\s*[:：][*_]*\s*(.+?)\s*$`)

// ParseNotification converts a chat message into an OnboardingRequest.
// Structured fields are preferred; free text is the fallback. Returns nil
// when the message is not an account notification; that is the normal
// case for channel chatter, not an error.
func ParseNotification(msg notify.Message) *OnboardingRequest {
	if !isAccountNotification(msg) {
		return nil
	}

	values := map[string]string{}
	if len(msg.Fields) > 0 {
		for _, f := range msg.Fields {
			if key := normalizeLabel(f.Label); key != "" {
				values[key] = strings.TrimSpace(f.Value)
			}
		}
	}
	if len(values) == 0 {
		for _, m := range lineRe.FindAllStringSubmatch(msg.Text, -1) {
			if key := normalizeLabel(m[1]); key != "" {
				values[key] = strings.TrimSpace(m[2])
			}
		}
	}

	req := &OnboardingRequest{
		Organization:  values["agency"],
		ClientName:    values["client"],
		BrokerKind:    ParseBrokerKind(values["broker"]),
		AccountNumber: values["account"],
		LoginUsername: values["username"],
		LoginPassword: values["password"],
	}
	if req.Organization == "" || values["broker"] == "" || req.AccountNumber == "" {
		return nil
	}
	return req
}

func isAccountNotification(msg notify.Message) bool {
	text := strings.ToLower(msg.Text)
	for _, marker := range headerMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	// Structured payloads sometimes carry the header in the attachment
	// title rather than the message body; a field list with the required
	// labels is accepted on its own.
	if len(msg.Fields) > 0 {
		seen := 0
		for _, f := range msg.Fields {
			switch normalizeLabel(f.Label) {
			case "agency", "broker", "account":
				seen++
			}
		}
		return seen == 3
	}
	return false
}

func normalizeLabel(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	l = strings.Trim(l, "*_:")
	l = strings.TrimSpace(l)
	switch {
	case l == "agency":
		return "agency"
	case l == "client":
		return "client"
	case l == "broker":
		return "broker"
	case strings.HasPrefix(l, "account"):
		return "account"
	case l == "username":
		return "username"
	case l == "password":
		return "password"
	}
	return ""
}
