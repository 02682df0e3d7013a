package payment

import (
	"github.com/merchware/backpay/internal/token"
)

// SavedMethod is the view model for one entry in the saved-methods list the
// admin form renders.
type SavedMethod struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	IsDefault bool   `json:"is_default"`
}

// NewMethodLabel is the label for the "enter a new card" list entry.
const NewMethodLabel = "Use a new payment method"

// ListSavedMethods returns the customer's saved payment methods for the
// configured gateway, default first, followed by the "new payment method"
// sentinel entry. The sentinel is preselected only when the customer has no
// saved methods. Pure read; no mutation.
func (o *Orchestrator) ListSavedMethods(customerID string) ([]SavedMethod, error) {
	tokens, err := o.tokens.ListByCustomer(customerID, o.settings.GatewayID)
	if err != nil {
		return nil, err
	}

	methods := make([]SavedMethod, 0, len(tokens)+1)
	for _, t := range tokens {
		methods = append(methods, SavedMethod{
			ID:        t.ID,
			Label:     t.DisplayName(),
			IsDefault: t.Default,
		})
	}
	methods = append(methods, SavedMethod{
		ID:        token.NewMethodSentinel,
		Label:     NewMethodLabel,
		IsDefault: len(tokens) == 0,
	})
	return methods, nil
}
