package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pedidopro/pedidopro/internal/pkg/database"
	"github.com/pedidopro/pedidopro/internal/pkg/env"
	"github.com/pedidopro/pedidopro/internal/pkg/payments"
	"github.com/pedidopro/pedidopro/internal/pkg/ratelimit"
)

const verifyThrottleNamespace = "verify-payment"

// PaymentVerifier is the slice of the payments service this controller uses.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, in payments.VerifyInput) (*payments.VerificationOutcome, error)
}

// PaymentController serves the payment verification endpoint.
type PaymentController struct {
	verifier PaymentVerifier
	limiter  *ratelimit.Limiter
	limit    int
	window   time.Duration
}

// NewPaymentController creates a controller with injected collaborators.
func NewPaymentController(verifier PaymentVerifier, limiter *ratelimit.Limiter, limit int, window time.Duration) *PaymentController {
	return &PaymentController{verifier: verifier, limiter: limiter, limit: limit, window: window}
}

// NewPaymentControllerFromEnv wires the controller to the global DB, the
// default limiter and the env-configured throttle knobs.
func NewPaymentControllerFromEnv() *PaymentController {
	limit, err := strconv.Atoi(env.GetEnv("VERIFY_RATE_LIMIT", "30"))
	if err != nil || limit <= 0 {
		limit = 30
	}
	windowSeconds, err := strconv.Atoi(env.GetEnv("VERIFY_RATE_WINDOW_SECONDS", "60"))
	if err != nil || windowSeconds <= 0 {
		windowSeconds = 60
	}
	return NewPaymentController(
		payments.NewServiceFromDB(database.GetDB()),
		ratelimit.Default(),
		limit,
		time.Duration(windowSeconds)*time.Second,
	)
}

// HandleVerifyPayment verifies a claimed payment for an order. It serves
// both webhook ingress (signed body) and user-redirect ingress (query
// parameters).
func (pc *PaymentController) HandleVerifyPayment(c *fiber.Ctx) error {
	setCORSHeaders(c)

	ip := clientIP(c)
	res := pc.limiter.Admit(ip, pc.limit, pc.window, verifyThrottleNamespace)
	c.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if !res.Allowed {
		retryAfter := int(time.Until(res.ResetAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":      "rate_limit_exceeded",
			"message":    "Too many verification attempts, please retry later",
			"retryAfter": retryAfter,
		})
	}

	orderID, paymentID := resolveIdentifiers(c)

	in := payments.VerifyInput{
		OrderID:         orderID,
		PaymentID:       paymentID,
		RawBody:         append([]byte(nil), c.BodyRaw()...),
		SignatureHeader: firstHeaderValue(c, "X-Signature", "X-Mp-Signature"),
		RemoteIP:        ip,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	outcome, err := pc.verifier.VerifyPayment(ctx, in)
	if err != nil {
		return writeVerificationError(c, err)
	}
	if !outcome.Success {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": false,
			"status":  outcome.Status,
			"message": outcome.Message,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"status":  outcome.Status,
		"data":    outcome.Payment,
	})
}

// HandleVerifyPreflight answers CORS preflight for the verification route.
func (pc *PaymentController) HandleVerifyPreflight(c *fiber.Ctx) error {
	setCORSHeaders(c)
	return c.SendStatus(fiber.StatusOK)
}

// resolveIdentifiers normalizes the dual ingress: JSON body fields
// (order_id, payment_id) take precedence over query parameters
// (external_reference, payment_id).
func resolveIdentifiers(c *fiber.Ctx) (orderID, paymentID string) {
	orderID = strings.TrimSpace(c.Query("external_reference"))
	paymentID = strings.TrimSpace(c.Query("payment_id"))

	var body struct {
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
	}
	if raw := c.Body(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err == nil {
			if v := strings.TrimSpace(body.OrderID); v != "" {
				orderID = v
			}
			if v := strings.TrimSpace(body.PaymentID); v != "" {
				paymentID = v
			}
		}
	}
	return orderID, paymentID
}

func writeVerificationError(c *fiber.Ctx, err error) error {
	var (
		validationErr *payments.ValidationError
		authErr       *payments.AuthenticationError
		notFoundErr   *payments.NotFoundError
		configErr     *payments.ConfigurationError
		upstreamErr   *payments.UpstreamError
	)
	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr.Message})
	case errors.As(err, &authErr):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": authErr.Message})
	case errors.As(err, &notFoundErr):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": notFoundErr.Message})
	case errors.As(err, &configErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": configErr.Message})
	case errors.As(err, &upstreamErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": upstreamErr.Message})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "payment verification failed"})
	}
}

// clientIP resolves the caller identity behind proxies. The same value is
// used for throttling and for the advisory webhook source heuristic.
func clientIP(c *fiber.Ctx) string {
	if fwd := strings.TrimSpace(c.Get("X-Forwarded-For")); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	if real := strings.TrimSpace(c.Get("X-Real-IP")); real != "" {
		return real
	}
	return c.IP()
}

func firstHeaderValue(c *fiber.Ctx, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(c.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

func setCORSHeaders(c *fiber.Ctx) {
	c.Set("Access-Control-Allow-Origin", "*")
	c.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	c.Set("Access-Control-Allow-Headers", "Content-Type, X-Signature, X-Mp-Signature")
}
