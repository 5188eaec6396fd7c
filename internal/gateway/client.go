package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	probePath   = "/reporting/v3/report-subscriptions"
	paymentPath = "/pts/v2/payments"

	// Responses larger than this are truncated before being stored for audit.
	maxResponseBytes = 64 << 10
)

// Credentials identifies one merchant account at the gateway.
type Credentials struct {
	MerchantID string
	KeyID      string
	SecretKey  string
}

// Client issues signed requests to the payment gateway and classifies the
// heterogeneous responses into typed outcomes. It performs no retries;
// retry policy belongs to the caller.
type Client struct {
	baseURL    string
	host       string
	creds      Credentials
	signer     *Signer
	httpClient *http.Client
}

// NewClient builds a gateway client for the given API base URL, e.g.
// "https://apitest.cybersource.com". The base URL is injected from config so
// tests can point to a local mock. The timeout bounds each individual call.
func NewClient(baseURL string, creds Credentials, signer *Signer, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("gateway URL %q has no host", baseURL)
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		host:    u.Host,
		creds:   creds,
		signer:  signer,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// paymentResponse maps the fields of a 2xx payment response we act on.
type paymentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// VerifyCredentials runs the two-step diagnostic protocol:
//
//  1. Probe: signed GET against a read-only reporting resource. A 401 here is
//     conclusive — the credentials are bad — and short-circuits without a
//     payment call. Any other status is inconclusive (the reporting service
//     may simply not be subscribed) and execution proceeds.
//  2. Test payment: signed POST of a clearly-marked test card payload,
//     classified like any live payment.
func (c *Client) VerifyCredentials(ctx context.Context) Outcome {
	status, body, err := c.do(ctx, http.MethodGet, probePath, nil)
	if err != nil {
		return Outcome{Kind: OutcomeTransportError, Message: err.Error()}
	}
	if status == http.StatusUnauthorized {
		return Outcome{
			Kind:        OutcomeAuthFailed,
			HTTPStatus:  status,
			RawResponse: string(body),
			Message:     authFailedRemediation,
		}
	}

	payload, err := json.Marshal(testPaymentRequest())
	if err != nil {
		return Outcome{Kind: OutcomeTransportError, Message: fmt.Sprintf("marshal test payment: %v", err)}
	}
	return c.SubmitPayment(ctx, payload)
}

// SubmitPayment signs and POSTs a payment payload, classifying the response.
func (c *Client) SubmitPayment(ctx context.Context, payload []byte) Outcome {
	status, body, err := c.do(ctx, http.MethodPost, paymentPath, payload)
	if err != nil {
		return Outcome{Kind: OutcomeTransportError, Message: err.Error()}
	}
	return classifyPayment(status, body)
}

// do signs and issues one request, returning the status and the (truncated)
// response body. A non-nil error means the call never produced a response.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	sig, err := c.signer.Sign(SigningContext{
		MerchantID:   c.creds.MerchantID,
		KeyID:        c.creds.KeyID,
		SecretKey:    c.creds.SecretKey,
		Host:         c.host,
		ResourcePath: path,
		Method:       method,
		Payload:      payload,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("sign request: %w", err)
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Date", sig.DateHeader)
	req.Header.Set("v-c-merchant-id", c.creds.MerchantID)
	req.Header.Set("Signature", sig.SignatureHeader)
	if payload != nil {
		req.Header.Set("Digest", sig.DigestHeader)
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read gateway response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// classifyPayment maps an HTTP payment response to a typed outcome.
// Non-2xx bodies are still parsed as JSON when possible; when not, the raw
// text is carried as-is for manual triage.
func classifyPayment(status int, body []byte) Outcome {
	raw := string(body)

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		var pr paymentResponse
		if err := json.Unmarshal(body, &pr); err != nil {
			return Outcome{
				Kind:        OutcomeUnexpected,
				HTTPStatus:  status,
				RawResponse: raw,
				Message:     "2xx response without a parseable status field",
			}
		}
		switch pr.Status {
		case "AUTHORIZED":
			return Outcome{Kind: OutcomeAuthorized, TransactionID: pr.ID, Status: pr.Status, HTTPStatus: status, RawResponse: raw}
		case "PENDING", "AUTHORIZED_PENDING_REVIEW":
			return Outcome{Kind: OutcomePending, TransactionID: pr.ID, Status: pr.Status, HTTPStatus: status, RawResponse: raw}
		case "DECLINED":
			return Outcome{Kind: OutcomeDeclined, TransactionID: pr.ID, Status: pr.Status, HTTPStatus: status, RawResponse: raw}
		default:
			return Outcome{
				Kind:        OutcomeUnexpected,
				HTTPStatus:  status,
				RawResponse: raw,
				Message:     fmt.Sprintf("unrecognized settlement status %q", pr.Status),
			}
		}

	case status == http.StatusUnauthorized:
		return Outcome{Kind: OutcomeAuthFailed, HTTPStatus: status, RawResponse: raw, Message: authFailedRemediation}

	case status == http.StatusNotFound:
		return Outcome{Kind: OutcomeServiceNotEnabled, HTTPStatus: status, RawResponse: raw, Message: notEnabledRemediation}

	default:
		return Outcome{
			Kind:        OutcomeUnexpected,
			HTTPStatus:  status,
			RawResponse: raw,
			Message:     fmt.Sprintf("unexpected gateway status %d", status),
		}
	}
}

// testPaymentRequest builds the minimal card payload used by the credential
// test. The reference code and test PAN mark it unmistakably as a probe.
func testPaymentRequest() map[string]any {
	return map[string]any{
		"clientReferenceInformation": map[string]any{
			"code": "CREDENTIAL-TEST",
		},
		"processingInformation": map[string]any{
			"capture": false,
		},
		"paymentInformation": map[string]any{
			"card": map[string]any{
				"number":          "4111111111111111",
				"expirationMonth": "12",
				"expirationYear":  "2031",
			},
		},
		"orderInformation": map[string]any{
			"amountDetails": map[string]any{
				"totalAmount": "1.00",
				"currency":    "USD",
			},
			"billTo": map[string]any{
				"firstName":  "Test",
				"lastName":   "Credential",
				"address1":   "1 Test St",
				"locality":   "Testville",
				"country":    "US",
				"email":      "test@example.com",
				"postalCode": "00000",
			},
		},
	}
}
