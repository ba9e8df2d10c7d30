package onboard

import (
	"testing"

	"github.com/kayz/copydesk/internal/notify"
)

func structuredNotification() notify.Message {
	return notify.Message{
		ID:        "1700000000.000100",
		Platform:  "slack",
		ChannelID: "C123",
		Text:      "New Account Added",
		Fields: []notify.Field{
			{Label: "Agency", Value: "Acme Capital"},
			{Label: "Client", Value: "Jane Trader"},
			{Label: "Broker", Value: "MT4"},
			{Label: "Account #", Value: "12345"},
		},
	}
}

func TestParseStructuredNotification(t *testing.T) {
	req := ParseNotification(structuredNotification())
	if req == nil {
		t.Fatalf("expected a parsed request")
	}
	if req.Organization != "Acme Capital" {
		t.Fatalf("unexpected organization: %q", req.Organization)
	}
	if req.ClientName != "Jane Trader" {
		t.Fatalf("unexpected client: %q", req.ClientName)
	}
	if req.BrokerKind != BrokerMT4 {
		t.Fatalf("unexpected broker kind: %q", req.BrokerKind)
	}
	if req.AccountNumber != "12345" {
		t.Fatalf("unexpected account number: %q", req.AccountNumber)
	}
}

func TestParseIsIdempotent(t *testing.T) {
	msg := structuredNotification()
	first := ParseNotification(msg)
	second := ParseNotification(msg)
	if first == nil || second == nil {
		t.Fatalf("expected both parses to succeed")
	}
	if *first != *second {
		t.Fatalf("parses differ: %#v vs %#v", *first, *second)
	}
}

func TestParsePlainTextFallbackMatchesStructured(t *testing.T) {
	structured := ParseNotification(structuredNotification())

	plain := notify.Message{
		ID:        "1700000000.000200",
		Platform:  "slack",
		ChannelID: "C123",
		Text: `New Account Added
Agency: Acme Capital
Client: Jane Trader
Broker: MT4
Account #: 12345`,
	}
	fallback := ParseNotification(plain)

	if structured == nil || fallback == nil {
		t.Fatalf("expected both parses to succeed")
	}
	if *structured != *fallback {
		t.Fatalf("structured and plain-text parses differ: %#v vs %#v", *structured, *fallback)
	}
}

func TestParsePlainTextWithMarkdownLabels(t *testing.T) {
	msg := notify.Message{
		Text: `New account created for onboarding:
*Agency:* Beta Fund
*Broker:* Tradovate
*Account #:* APEX-414-499
*Username:* trader9
*Password:* hunter2`,
	}
	req := ParseNotification(msg)
	if req == nil {
		t.Fatalf("expected a parsed request")
	}
	if req.BrokerKind != BrokerTradovate {
		t.Fatalf("unexpected broker kind: %q", req.BrokerKind)
	}
	if req.AccountNumber != "APEX-414-499" {
		t.Fatalf("parser must not normalize the account number: %q", req.AccountNumber)
	}
	if req.LoginUsername != "trader9" || req.LoginPassword != "hunter2" {
		t.Fatalf("unexpected credentials: %q / %q", req.LoginUsername, req.LoginPassword)
	}
}

func TestParseIgnoresChannelChatter(t *testing.T) {
	for _, text := range []string{
		"",
		"good morning everyone",
		"Agency: Acme Capital", // label present but no header and no triple
		"can someone add an account for me?",
	} {
		if req := ParseNotification(notify.Message{Text: text}); req != nil {
			t.Fatalf("expected nil for %q, got %#v", text, req)
		}
	}
}

func TestParseRequiresTriple(t *testing.T) {
	msg := notify.Message{
		Text: `New Account Added
Agency: Acme Capital
Client: Jane Trader`,
	}
	if req := ParseNotification(msg); req != nil {
		t.Fatalf("expected nil without broker and account number, got %#v", req)
	}
}

func TestParseAcceptsFieldListWithoutHeader(t *testing.T) {
	msg := structuredNotification()
	msg.Text = ""
	req := ParseNotification(msg)
	if req == nil {
		t.Fatalf("expected field list alone to be recognized")
	}
}
