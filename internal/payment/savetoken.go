package payment

import (
	"github.com/merchware/backpay/internal/gateway"
	"github.com/merchware/backpay/internal/token"
)

// saveToken persists the charged card as a reusable payment method. The
// gateway only creates a stored profile in some account modes; when the
// response carries no customer profile id this is a silent no-op, not an
// error.
func (o *Orchestrator) saveToken(resp *gateway.Response, expiry, customerID string) error {
	if resp == nil || resp.Profile == nil || resp.Profile.CustomerProfileID == "" {
		return nil
	}

	paymentProfileID := ""
	if len(resp.Profile.PaymentProfileIDs) > 0 {
		paymentProfileID = resp.Profile.PaymentProfileIDs[0]
	}

	tok := &token.PaymentToken{
		CustomerID: customerID,
		GatewayID:  o.settings.GatewayID,
		Value:      resp.Profile.CustomerProfileID + "|" + paymentProfileID,
	}
	if resp.Transaction != nil {
		tok.CardType = resp.Transaction.AccountType
		tok.Last4 = resp.Transaction.Last4()
	}
	if len(expiry) == 4 {
		tok.ExpiryMonth = expiry[:2]
		tok.ExpiryYear = "20" + expiry[2:]
	}

	if err := o.tokens.Save(tok); err != nil {
		return err
	}
	o.metrics.RecordTokenSaved()
	return nil
}
