package payments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// WebhookEvent is the gateway notification payload. All seven fields are
// required; unknown action values are tolerated for forward compatibility.
type WebhookEvent struct {
	Action      string `json:"action" validate:"required"`
	APIVersion  string `json:"api_version" validate:"required"`
	DataID      string `json:"-"`
	DateCreated string `json:"date_created" validate:"required"`
	ID          string `json:"-"`
	Type        string `json:"type" validate:"required"`
	UserID      string `json:"-"`
}

// WebhookAuthResult is the net result of authenticating one notification.
type WebhookAuthResult struct {
	Valid     bool
	PaymentID string
	Event     *WebhookEvent
	Errors    []string
	Warnings  []string
}

var knownWebhookActions = map[string]struct{}{
	"payment.created": {},
	"payment.updated": {},
}

var paymentIDPattern = regexp.MustCompile(`^\d+$`)

var eventValidator = validator.New()

// AuthenticateWebhook verifies that rawBody genuinely originates from the
// payment gateway and extracts a trustworthy payment id from it. It fails
// closed: any signature or structure violation yields an AuthenticationError
// and the result's Errors list. Warnings (unknown action, private source IP)
// never cause rejection.
func AuthenticateWebhook(rawBody []byte, signatureHeader, secret, remoteIP string) (*WebhookAuthResult, error) {
	res := &WebhookAuthResult{}

	if ip := net.ParseIP(strings.TrimSpace(remoteIP)); ip != nil && (ip.IsLoopback() || ip.IsPrivate()) {
		// Advisory only. The gateway publishes no fixed IP allowlist, so a
		// private source is suspicious but never grounds for rejection.
		res.Warnings = append(res.Warnings, fmt.Sprintf("webhook received from private address %s", ip))
	}

	if !verifyWebhookSignature(rawBody, signatureHeader, secret) {
		res.Errors = append(res.Errors, "signature verification failed")
		return res, &AuthenticationError{Message: "invalid webhook signature", Reasons: res.Errors}
	}

	event, structErrs, warnings := parseWebhookEvent(rawBody)
	res.Warnings = append(res.Warnings, warnings...)
	if len(structErrs) > 0 {
		res.Errors = append(res.Errors, structErrs...)
		return res, &AuthenticationError{Message: "malformed webhook event", Reasons: res.Errors}
	}

	paymentID, err := extractPaymentID(event.DataID)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, &AuthenticationError{Message: "webhook carries no usable payment id", Reasons: res.Errors}
	}

	res.Valid = true
	res.PaymentID = paymentID
	res.Event = event
	return res, nil
}

// parseSignatureHash extracts the hash from the signature header. Headers
// either carry one bare hash or comma-separated key=value segments, e.g.
// "ts=1704067200,v1=abcdef...". The first segment keyed v1 or signature
// wins. A leading "sha256=" or "v1=" prefix on the hash itself is stripped.
func parseSignatureHash(header string) string {
	sig := strings.TrimSpace(header)
	if strings.Contains(sig, "=") {
		found := ""
		for _, segment := range strings.Split(sig, ",") {
			parts := strings.SplitN(strings.TrimSpace(segment), "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			if key == "v1" || key == "signature" {
				found = strings.TrimSpace(parts[1])
				break
			}
		}
		if found != "" {
			sig = found
		}
	}
	sig = strings.TrimPrefix(sig, "sha256=")
	sig = strings.TrimPrefix(sig, "v1=")
	return sig
}

// verifyWebhookSignature computes HMAC-SHA256 over the exact raw body bytes
// with the store's access token as secret and compares constant-time.
func verifyWebhookSignature(payload []byte, signatureHeader, secret string) bool {
	hash := parseSignatureHash(signatureHeader)
	if hash == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	expected, err := hex.DecodeString(strings.ToLower(hash))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}

// rawWebhookEvent mirrors the wire shape before type normalization. String
// fields are pointers so a missing field is distinguishable from an empty
// one; id-ish fields arrive as numbers or strings depending on gateway
// version, so they stay raw until stringified.
type rawWebhookEvent struct {
	Action      *string `json:"action"`
	APIVersion  *string `json:"api_version"`
	Data        *struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
	DateCreated *string         `json:"date_created"`
	ID          json.RawMessage `json:"id"`
	Type        *string         `json:"type"`
	UserID      json.RawMessage `json:"user_id"`
}

func parseWebhookEvent(rawBody []byte) (*WebhookEvent, []string, []string) {
	var raw rawWebhookEvent
	dec := json.NewDecoder(bytes.NewReader(rawBody))
	if err := dec.Decode(&raw); err != nil {
		return nil, []string{fmt.Sprintf("event is not valid JSON or has mistyped fields: %v", err)}, nil
	}

	var errs []string
	if raw.Data == nil {
		errs = append(errs, "missing required field: data")
	}
	if len(raw.ID) == 0 {
		errs = append(errs, "missing required field: id")
	}
	if len(raw.UserID) == 0 {
		errs = append(errs, "missing required field: user_id")
	}

	event := &WebhookEvent{}
	if raw.Action != nil {
		event.Action = *raw.Action
	}
	if raw.APIVersion != nil {
		event.APIVersion = *raw.APIVersion
	}
	if raw.DateCreated != nil {
		event.DateCreated = *raw.DateCreated
	}
	if raw.Type != nil {
		event.Type = *raw.Type
	}
	if err := eventValidator.Struct(event); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, ve := range verrs {
				errs = append(errs, fmt.Sprintf("missing required field: %s", strings.ToLower(ve.Field())))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return nil, errs, nil
	}

	event.ID = stringifyScalar(raw.ID)
	event.UserID = stringifyScalar(raw.UserID)
	event.DataID = stringifyScalar(raw.Data.ID)

	var warnings []string
	if _, ok := knownWebhookActions[event.Action]; !ok {
		warnings = append(warnings, fmt.Sprintf("unknown webhook action %q", event.Action))
	}
	return event, nil, warnings
}

// extractPaymentID validates that the stringified data.id is a plain
// numeric gateway payment id.
func extractPaymentID(dataID string) (string, error) {
	if !paymentIDPattern.MatchString(dataID) {
		return "", &ValidationError{Message: fmt.Sprintf("invalid payment id %q in webhook data", dataID)}
	}
	return dataID, nil
}

// stringifyScalar renders a raw JSON scalar as its string value, without
// surrounding quotes for JSON strings.
func stringifyScalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
