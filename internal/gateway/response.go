// Package gateway defines the payment gateway collaborator contract consumed
// by the payment orchestrator: the request interface, the response shape, and
// the gateway account settings.
//
// The wire protocol, request signing, and transport live entirely behind the
// Client interface; this package only models what the orchestrator needs to
// interpret.
package gateway

import (
	"encoding/json"
	"fmt"
)

// ResponseCodeApproved is the outcome code the gateway returns for an
// approved transaction. Any other code is a decline.
const ResponseCodeApproved = "1"

// TransactionResponse is the per-transaction portion of a gateway response.
// Every field is optional on the wire; absent fields decode to empty strings.
type TransactionResponse struct {
	ResponseCode  string `json:"responseCode,omitempty"`
	TransID       string `json:"transId,omitempty"`
	AVSResultCode string `json:"avsResultCode,omitempty"`
	CVVResultCode string `json:"cvvResultCode,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"` // masked, e.g. "XXXX4242"
	AccountType   string `json:"accountType,omitempty"`   // e.g. "Visa"
}

// ProfileResponse is returned when the gateway also created a stored customer
// profile for the charged card. Gateways without stored-profile support omit it.
type ProfileResponse struct {
	CustomerProfileID string   `json:"customerProfileId,omitempty"`
	PaymentProfileIDs []string `json:"customerPaymentProfileIdList,omitempty"`
}

// Response is a structured gateway response. Both nested sections are
// optional; callers must check for presence rather than assume shape.
type Response struct {
	Transaction *TransactionResponse `json:"transactionResponse,omitempty"`
	Profile     *ProfileResponse     `json:"profileResponse,omitempty"`
}

// DecodeResponse decodes a raw gateway response body. Unknown fields are
// ignored; a body that does not parse at all is a transport-level failure.
func DecodeResponse(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return &resp, nil
}

// Last4 returns the last four digits of the masked account number, or the
// whole value when it is shorter than four characters.
func (t *TransactionResponse) Last4() string {
	if len(t.AccountNumber) <= 4 {
		return t.AccountNumber
	}
	return t.AccountNumber[len(t.AccountNumber)-4:]
}
