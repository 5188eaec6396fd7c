package gateway

import "encoding/json"

// PaymentRequest builds the JSON payload for a live tokenized donation
// payment. The card itself never transits this service; the browser wizard
// exchanges it for a transient token at the gateway and hands only the token
// over.
func PaymentRequest(reference, amount, currency, transientToken string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"clientReferenceInformation": map[string]any{
			"code": reference,
		},
		"processingInformation": map[string]any{
			"capture": true,
		},
		"tokenInformation": map[string]any{
			"transientTokenJwt": transientToken,
		},
		"orderInformation": map[string]any{
			"amountDetails": map[string]any{
				"totalAmount": amount,
				"currency":    currency,
			},
		},
	})
}
