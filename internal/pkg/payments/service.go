package payments

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/pedidopro/pedidopro/app/models"
	"gorm.io/gorm"
)

// Service reconciles claimed payments against the gateway and settles them
// into durable order state, exactly once per gateway payment.
type Service struct {
	repo    Repository
	gateway Gateway
}

// NewService creates a reconciler from injected collaborators.
func NewService(repo Repository, gateway Gateway) *Service {
	return &Service{repo: repo, gateway: gateway}
}

// NewServiceFromDB creates a reconciler wired to GORM and the real gateway.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), NewGatewayClient())
}

// VerifyInput carries everything one verification attempt arrived with.
// OrderID/PaymentID come from the normalized request identifiers; RawBody
// and SignatureHeader are only set on webhook ingress.
type VerifyInput struct {
	OrderID         string
	PaymentID       string
	RawBody         []byte
	SignatureHeader string
	RemoteIP        string
}

// VerificationOutcome is the business-level result of one verification run.
// Success=false with Status "pending" is not an error: the gateway simply
// has no approved payment for the order yet.
type VerificationOutcome struct {
	Success  bool
	Status   string
	Message  string
	Payment  *models.OrderPayment
	Warnings []string
}

// VerifyPayment runs the verification pipeline: order lookup, idempotent
// short-circuit, credential lookup, conditional webhook authentication,
// gateway resolution with fallback, and the idempotent commit. Every step
// short-circuits on failure; only the final commit writes anything.
func (s *Service) VerifyPayment(ctx context.Context, in VerifyInput) (*VerificationOutcome, error) {
	orderID := strings.TrimSpace(in.OrderID)
	paymentID := strings.TrimSpace(in.PaymentID)
	if orderID == "" && paymentID == "" {
		return nil, &ValidationError{Message: "order_id or payment_id is required"}
	}

	order, err := s.repo.GetOrderByID(orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, &NotFoundError{Message: "order not found"}
		}
		return nil, err
	}

	// Terminal payment states are never re-verified. Repeated webhook
	// deliveries and repeated manual checks stop here, before any gateway
	// call or write.
	if order.IsPaymentSettled() {
		return &VerificationOutcome{
			Success: true,
			Status:  models.PaymentStatusApproved,
			Message: "payment already verified",
		}, nil
	}

	store, err := s.repo.GetStoreByID(order.StoreID)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return nil, &NotFoundError{Message: "store not found for order"}
		}
		return nil, err
	}
	accessToken := strings.TrimSpace(store.MPAccessToken)
	if accessToken == "" {
		return nil, &ConfigurationError{Message: "store has no gateway access token configured"}
	}

	var warnings []string
	if strings.TrimSpace(in.SignatureHeader) != "" {
		auth, err := AuthenticateWebhook(in.RawBody, in.SignatureHeader, accessToken, in.RemoteIP)
		if auth != nil {
			warnings = append(warnings, auth.Warnings...)
		}
		if err != nil {
			// A forged or tampered notification aborts the whole run, even
			// when it also carries a plausible order id.
			return nil, err
		}
		// The signed payload is more trustworthy than a caller-supplied
		// field, but an explicit caller id still wins for manual re-checks.
		if paymentID == "" && auth.PaymentID != "" {
			paymentID = auth.PaymentID
		}
	}

	payment, err := s.resolveApprovedPayment(ctx, accessToken, orderID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return &VerificationOutcome{
			Success:  false,
			Status:   models.PaymentStatusPending,
			Message:  "no approved payment found for this order yet",
			Warnings: warnings,
		}, nil
	}

	snapshot := normalizePayment(payment, order)
	if err := s.repo.CommitVerifiedPayment(snapshot); err != nil {
		return nil, err
	}

	return &VerificationOutcome{
		Success:  true,
		Status:   models.PaymentStatusApproved,
		Message:  "payment verified",
		Payment:  snapshot,
		Warnings: warnings,
	}, nil
}

// resolveApprovedPayment implements the fallback chain: direct fetch by id
// first, then a search by external reference when the direct path failed or
// came back unapproved. Returns nil when neither path found an approved
// payment.
func (s *Service) resolveApprovedPayment(ctx context.Context, accessToken, orderID, paymentID string) (*GatewayPayment, error) {
	if paymentID != "" {
		payment, err := s.gateway.GetPayment(ctx, accessToken, paymentID)
		if err == nil && payment.Status == PaymentStatusApproved {
			return payment, nil
		}
		if err != nil {
			// The direct fetch is best-effort; the search below is the
			// authoritative fallback.
			log.Printf("payments: direct fetch of payment %s failed, falling back to search: %v", paymentID, err)
		}
	}

	if orderID == "" {
		return nil, nil
	}

	results, err := s.gateway.SearchApprovedPayments(ctx, accessToken, orderID)
	if err != nil {
		return nil, err
	}

	var approved []GatewayPayment
	for _, p := range results {
		if p.Status == PaymentStatusApproved {
			approved = append(approved, p)
		}
	}
	if len(approved) == 0 {
		return nil, nil
	}

	// Multiple approved hits for one order: the gateway returns search
	// results in ascending approval order, so the last element is the most
	// recent payment and wins.
	latest := approved[len(approved)-1]
	return &latest, nil
}

// normalizePayment maps a gateway payment onto the commit snapshot,
// filling the documented defaults for absent fields.
func normalizePayment(payment *GatewayPayment, order *models.Order) *models.OrderPayment {
	statusDetail := payment.StatusDetail
	if statusDetail == "" {
		statusDetail = "accredited"
	}
	methodID := payment.PaymentMethodID
	if methodID == "" {
		methodID = "unknown"
	}
	typeID := payment.PaymentTypeID
	if typeID == "" {
		typeID = "unknown"
	}

	approvedAt := time.Now()
	if payment.DateApproved != "" {
		if t, err := time.Parse(time.RFC3339, payment.DateApproved); err == nil {
			approvedAt = t
		}
	}

	return &models.OrderPayment{
		StoreID:          order.StoreID,
		OrderID:          order.ID,
		GatewayPaymentID: payment.ID.String(),
		Amount:           payment.TransactionAmount,
		Status:           PaymentStatusApproved,
		StatusDetail:     statusDetail,
		PaymentMethodID:  methodID,
		PaymentTypeID:    typeID,
		PayerEmail:       payment.Payer.Email,
		ApprovedAt:       approvedAt,
	}
}
