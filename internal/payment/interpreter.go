package payment

import (
	"github.com/merchware/backpay/internal/gateway"
)

// Category classifies a gateway charge outcome.
type Category int

const (
	// CategoryApproved means the gateway confirmed the charge.
	CategoryApproved Category = iota

	// CategoryDeclined means the gateway answered but did not approve,
	// including well-formed responses missing a success code.
	CategoryDeclined

	// CategoryTransportError means the call itself failed: network, auth,
	// or a response the client could not parse. Distinct from a business
	// decline.
	CategoryTransportError
)

// String returns the category name for logs and metrics labels.
func (c Category) String() string {
	switch c {
	case CategoryApproved:
		return "approved"
	case CategoryDeclined:
		return "declined"
	case CategoryTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Interpreted is the result of classifying a gateway response. Field values
// are raw gateway codes; operator-readable AVS/CVV text comes from the
// gateway settings lookup, not from here.
type Interpreted struct {
	Category      Category
	ResponseCode  string
	TransactionID string
	AVSCode       string
	CVVCode       string
	AccountLast4  string
	AccountType   string

	// Err holds the transport error when Category is CategoryTransportError.
	Err error
}

// Interpret classifies a gateway response. It is a pure function: missing or
// malformed nested sections classify as declined rather than crashing, and a
// non-nil call error always wins as a transport failure.
func Interpret(resp *gateway.Response, err error) Interpreted {
	if err != nil {
		return Interpreted{Category: CategoryTransportError, Err: err}
	}
	if resp == nil || resp.Transaction == nil {
		return Interpreted{Category: CategoryDeclined}
	}

	tr := resp.Transaction
	if tr.ResponseCode != gateway.ResponseCodeApproved {
		return Interpreted{
			Category:     CategoryDeclined,
			ResponseCode: tr.ResponseCode,
		}
	}

	return Interpreted{
		Category:      CategoryApproved,
		ResponseCode:  tr.ResponseCode,
		TransactionID: tr.TransID,
		AVSCode:       tr.AVSResultCode,
		CVVCode:       tr.CVVResultCode,
		AccountLast4:  tr.Last4(),
		AccountType:   tr.AccountType,
	}
}
