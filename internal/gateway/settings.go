package gateway

// TransactionMode selects how charges are dispatched for a gateway account.
type TransactionMode string

const (
	// ModeAuthorize reserves funds only; capture happens later.
	ModeAuthorize TransactionMode = "authorize"

	// ModePurchase authorizes and captures in one step.
	ModePurchase TransactionMode = "purchase"
)

// Settings holds the merchant's gateway account configuration as consumed by
// the orchestrator. Credentials stay inside the Client implementation.
type Settings struct {
	// GatewayID identifies the gateway, e.g. "authnet". Saved tokens are
	// scoped to it.
	GatewayID string

	// Mode determines whether charges authorize or purchase.
	Mode TransactionMode

	// StoredProfilesEnabled reports whether the gateway account supports
	// creating stored customer profiles (and therefore saving tokens).
	StoredProfilesEnabled bool
}

// avsMessages maps gateway AVS result codes to operator-readable text.
var avsMessages = map[string]string{
	"A": "Address matches, ZIP code does not",
	"B": "Address information not provided",
	"E": "Address verification error",
	"G": "Non-U.S. card issuing bank",
	"N": "Neither address nor ZIP code match",
	"P": "Address verification not applicable",
	"R": "Retry, system unavailable or timed out",
	"S": "Address verification not supported by issuer",
	"U": "Address information unavailable",
	"W": "Nine digit ZIP matches, address does not",
	"X": "Address and nine digit ZIP match",
	"Y": "Address and five digit ZIP match",
	"Z": "Five digit ZIP matches, address does not",
}

// cvvMessages maps gateway CVV result codes to operator-readable text.
var cvvMessages = map[string]string{
	"M": "Successful match",
	"N": "Does not match",
	"P": "Not processed",
	"S": "Should be on card, but is not indicated",
	"U": "Issuer is not certified or has not provided encryption key",
}

// AVSMessage returns the operator-readable text for an AVS result code.
func (s Settings) AVSMessage(code string) string {
	if msg, ok := avsMessages[code]; ok {
		return msg
	}
	return "Unknown AVS response code"
}

// CVVMessage returns the operator-readable text for a CVV result code.
func (s Settings) CVVMessage(code string) string {
	if msg, ok := cvvMessages[code]; ok {
		return msg
	}
	return "Unknown CVV2 response code"
}
