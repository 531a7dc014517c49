package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pedidopro/pedidopro/internal/pkg/env"
)

const defaultGatewayAPIBaseURL = "https://api.mercadopago.com"

// PaymentStatusApproved is the gateway-side status that allows a commit.
const PaymentStatusApproved = "approved"

// GatewayPayment is the read-only payment entity as reported by the gateway.
type GatewayPayment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	TransactionAmount float64     `json:"transaction_amount"`
	PaymentMethodID   string      `json:"payment_method_id"`
	PaymentTypeID     string      `json:"payment_type_id"`
	ExternalReference string      `json:"external_reference"`
	DateApproved      string      `json:"date_approved"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
}

// Gateway is the outbound surface the reconciler needs from the payment
// provider. Credentials are per call because every store carries its own
// access token.
type Gateway interface {
	GetPayment(ctx context.Context, accessToken, paymentID string) (*GatewayPayment, error)
	SearchApprovedPayments(ctx context.Context, accessToken, externalReference string) ([]GatewayPayment, error)
}

// GatewayClient talks to the payment provider's REST API.
type GatewayClient struct {
	APIBaseURL string
	HTTPClient *http.Client
}

// NewGatewayClient creates a client against the configured gateway host.
func NewGatewayClient() *GatewayClient {
	return &GatewayClient{
		APIBaseURL: strings.TrimRight(env.GetEnv("MP_API_BASE_URL", defaultGatewayAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetPayment fetches one payment by id.
func (c *GatewayClient) GetPayment(ctx context.Context, accessToken, paymentID string) (*GatewayPayment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, &ValidationError{Message: "payment id is required"}
	}

	body, err := c.get(ctx, accessToken, "/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}

	var payment GatewayPayment
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, &UpstreamError{Message: "gateway returned an unreadable payment", Err: err}
	}
	return &payment, nil
}

// SearchApprovedPayments queries payments filtered by external reference and
// approved status. Result ordering is the gateway's; callers own any
// tie-break among multiple hits.
func (c *GatewayClient) SearchApprovedPayments(ctx context.Context, accessToken, externalReference string) ([]GatewayPayment, error) {
	q := url.Values{}
	q.Set("external_reference", externalReference)
	q.Set("status", PaymentStatusApproved)

	body, err := c.get(ctx, accessToken, "/v1/payments/search", q)
	if err != nil {
		return nil, err
	}

	var out struct {
		Results []GatewayPayment `json:"results"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &UpstreamError{Message: "gateway returned an unreadable search result", Err: err}
	}
	return out.Results, nil
}

func (c *GatewayClient) get(ctx context.Context, accessToken, path string, query url.Values) ([]byte, error) {
	u := c.APIBaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &UpstreamError{Message: "building gateway request failed", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(accessToken))
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: "gateway request failed", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Message: fmt.Sprintf("gateway request failed: status=%d body=%s", resp.StatusCode, string(body))}
	}
	return body, nil
}
