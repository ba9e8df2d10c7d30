package onboard

import "strings"

// BrokerKind identifies the trading platform family an account lives on.
type BrokerKind string

const (
	BrokerMT4       BrokerKind = "mt4"
	BrokerMT5       BrokerKind = "mt5"
	BrokerCTrader   BrokerKind = "ctrader"
	BrokerDXTrade   BrokerKind = "dxtrade"
	BrokerTradovate BrokerKind = "tradovate"
)

// AuthMode describes how an account is authorized on the console.
type AuthMode int

const (
	// AuthDirect platforms take login and password directly in the
	// add-account form.
	AuthDirect AuthMode = iota
	// AuthPopup platforms take only an account number in the form; the
	// broker opens its own login window after submission.
	AuthPopup
)

// brokerAliases maps notification spellings onto broker kinds.
var brokerAliases = map[string]BrokerKind{
	"mt4":          BrokerMT4,
	"metatrader 4": BrokerMT4,
	"metatrader4":  BrokerMT4,
	"mt5":          BrokerMT5,
	"metatrader 5": BrokerMT5,
	"metatrader5":  BrokerMT5,
	"ctrader":      BrokerCTrader,
	"dxtrade":      BrokerDXTrade,
	"dx trade":     BrokerDXTrade,
	"tradovate":    BrokerTradovate,
}

// ParseBrokerKind maps a notification's broker label onto a BrokerKind.
// Unknown labels pass through lower-cased so that a newly listed platform
// on the console can still be selected without a code change.
func ParseBrokerKind(s string) BrokerKind {
	key := strings.ToLower(strings.TrimSpace(s))
	if k, ok := brokerAliases[key]; ok {
		return k
	}
	return BrokerKind(key)
}

// AuthMode reports whether the kind uses popup-based secondary
// authorization. Only the Tradovate family does.
func (k BrokerKind) AuthMode() AuthMode {
	if k == BrokerTradovate {
		return AuthPopup
	}
	return AuthDirect
}

// SelectValue returns the console's platform-select option value for the
// kind. The console uses the same lower-case tokens, so the kind itself is
// the value.
func (k BrokerKind) SelectValue() string {
	return string(k)
}

// NormalizeAccountNumber strips separators from an account number. The
// console rejects numbers containing dashes or spaces ("APEX-414-499" must
// be entered as "APEX414499").
func NormalizeAccountNumber(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// OnboardingRequest is one parsed account notification. Immutable once
// created by the parser.
type OnboardingRequest struct {
	Organization  string
	ClientName    string
	BrokerKind    BrokerKind
	AccountNumber string
	LoginUsername string
	LoginPassword string // sensitive, never logged
}

// QueueItem wraps a request with the provenance needed to report status
// back onto the originating notification.
type QueueItem struct {
	Request         OnboardingRequest
	SourceMessageID string
	Platform        string
	ChannelID       string
}
