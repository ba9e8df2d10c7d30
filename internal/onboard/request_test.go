package onboard

import "testing"

func TestParseBrokerKindAliases(t *testing.T) {
	tests := map[string]BrokerKind{
		"MT4":          BrokerMT4,
		"metatrader 4": BrokerMT4,
		"mt5":          BrokerMT5,
		"Metatrader 5": BrokerMT5,
		"MetaTrader5":  BrokerMT5,
		"cTrader":      BrokerCTrader,
		"DXtrade":      BrokerDXTrade,
		"Tradovate":    BrokerTradovate,
	}
	for in, want := range tests {
		if got := ParseBrokerKind(in); got != want {
			t.Fatalf("ParseBrokerKind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseBrokerKindUnknownPassesThroughLowercased(t *testing.T) {
	got := ParseBrokerKind("FooBroker")
	if got != BrokerKind("foobroker") {
		t.Fatalf("expected lower-cased passthrough, got %q", got)
	}
	if got.AuthMode() != AuthDirect {
		t.Fatalf("unknown kinds default to direct credentials")
	}
}

func TestAuthMode(t *testing.T) {
	if BrokerTradovate.AuthMode() != AuthPopup {
		t.Fatalf("Tradovate must use popup authorization")
	}
	for _, k := range []BrokerKind{BrokerMT4, BrokerMT5, BrokerCTrader, BrokerDXTrade} {
		if k.AuthMode() != AuthDirect {
			t.Fatalf("%q must use direct credentials", k)
		}
	}
}

func TestNormalizeAccountNumber(t *testing.T) {
	tests := map[string]string{
		"APEX-414-499":  "APEX414499",
		"12345":         "12345",
		" 12 34 5 ":     "12345",
		"apex_414/499":  "apex414499",
		"ABC-123-xyz-9": "ABC123xyz9",
	}
	for in, want := range tests {
		if got := NormalizeAccountNumber(in); got != want {
			t.Fatalf("NormalizeAccountNumber(%q) = %q, want %q", in, got, want)
		}
	}
}
