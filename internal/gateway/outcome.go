package gateway

// OutcomeKind tags the classified result of a gateway call.
type OutcomeKind string

const (
	OutcomeAuthorized        OutcomeKind = "authorized"
	OutcomePending           OutcomeKind = "pending"
	OutcomeAuthFailed        OutcomeKind = "auth_failed"
	OutcomeServiceNotEnabled OutcomeKind = "service_not_enabled"
	OutcomeDeclined          OutcomeKind = "declined"
	OutcomeUnexpected        OutcomeKind = "unexpected"
	OutcomeTransportError    OutcomeKind = "transport_error"
)

// Outcome is the typed classification of one gateway response. Every outcome
// except TransportError keeps the raw response body for audit; nothing is
// discarded on the failure paths.
type Outcome struct {
	Kind          OutcomeKind `json:"kind"`
	TransactionID string      `json:"transaction_id,omitempty"`
	Status        string      `json:"status,omitempty"`
	HTTPStatus    int         `json:"http_status,omitempty"`
	RawResponse   string      `json:"raw_response,omitempty"`
	Message       string      `json:"message,omitempty"`
}

// Succeeded reports whether the payment went through (settled or settling).
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeAuthorized || o.Kind == OutcomePending
}

// The two 4xx outcomes need entirely different remediation and are easy to
// conflate; the messages spell out the difference for the operator.
const (
	authFailedRemediation = "the gateway rejected the request signature (HTTP 401): " +
		"verify the merchant ID, key ID, and shared secret match the key generated " +
		"in the gateway's merchant portal"
	notEnabledRemediation = "the payment resource does not exist for this merchant (HTTP 404): " +
		"credentials are likely fine, but the account lacks the card-processing " +
		"capability — contact the gateway operator to enable the payments service"
)
