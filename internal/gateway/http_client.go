package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

// HTTPClient delivers messages by POSTing to the provider's send endpoint.
// The base URL and shared secret are injected from config so tests can point
// to a local mock.
type HTTPClient struct {
	baseURL    string
	secret     []byte
	httpClient *http.Client
}

// NewHTTPClient constructs a client with a hard request timeout. The
// timeout is the upper bound on any Send call; an expired request surfaces
// as a transient error, never as an indefinite block.
func NewHTTPClient(baseURL, secret string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		secret:  []byte(secret),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the message and classifies the outcome. Timeouts, throttling
// (429), and 5xx responses are transient; any other non-2xx status is a
// terminal rejection (malformed or unreachable number, hard provider error).
func (c *HTTPClient) Send(ctx context.Context, phoneNumber, body string) (*SendResult, error) {
	payload, err := json.Marshal(SendRequest{To: phoneNumber, Body: body})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network failures and client timeouts are indistinguishable from a
		// provider that would have answered eventually: retry.
		return nil, &domain.TransientGatewayError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var result SendResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, &domain.TransientGatewayError{Err: fmt.Errorf("decode response: %w", err)}
		}
		return &result, nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return nil, &domain.TransientGatewayError{Err: fmt.Errorf("provider status %d", resp.StatusCode)}
	default:
		return nil, &domain.TerminalGatewayError{Err: fmt.Errorf("provider status %d", resp.StatusCode)}
	}
}

// VerifySignature checks a hex-encoded HMAC-SHA256 of the raw body against
// the shared secret, in constant time.
func (c *HTTPClient) VerifySignature(rawBody []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the signature the provider would attach to rawBody.
// Used by tests and the manual-trigger tooling.
func (c *HTTPClient) Sign(rawBody []byte) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// compile-time check that HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
