package gateway

import "context"

// SendRequest is the JSON body posted to the SMS provider.
type SendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// SendResult maps the provider's accepted-response body.
type SendResult struct {
	ProviderMessageID string `json:"messageId"`
	Status            string `json:"status"`
}

// Client abstracts the external messaging gateway. Mocking this interface
// in tests gives full control over provider behaviour without real HTTP
// calls.
//
// Send failures are classified by the implementation into
// domain.TransientGatewayError (retry per backoff) or
// domain.TerminalGatewayError (fail immediately, no retry).
type Client interface {
	Send(ctx context.Context, phoneNumber, body string) (*SendResult, error)

	// VerifySignature checks the provider's signature header over the raw
	// inbound request body. Enforced in every environment; there is no
	// deployment-tier bypass.
	VerifySignature(rawBody []byte, signature string) bool
}
