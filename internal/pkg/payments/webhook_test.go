package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
)

const testWebhookSecret = "TEST-8765432109876543-store-token"

func validEventBody() []byte {
	return []byte(`{
		"action": "payment.updated",
		"api_version": "v1",
		"data": {"id": "123456789"},
		"date_created": "2024-05-01T12:34:56Z",
		"id": 987654321,
		"type": "payment",
		"user_id": "44444444"
	}`)
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestAuthenticateWebhook_ValidSignature(t *testing.T) {
	body := validEventBody()
	header := fmt.Sprintf("ts=1704067200,v1=%s", signBody(body, testWebhookSecret))

	res, err := AuthenticateWebhook(body, header, testWebhookSecret, "203.0.113.7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected valid result, errors: %v", res.Errors)
	}
	if res.PaymentID != "123456789" {
		t.Fatalf("paymentID = %q, want 123456789", res.PaymentID)
	}
	if res.Event == nil || res.Event.Action != "payment.updated" {
		t.Fatalf("unexpected event: %+v", res.Event)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
}

func TestAuthenticateWebhook_HeaderFormats(t *testing.T) {
	body := validEventBody()
	sig := signBody(body, testWebhookSecret)

	headers := []string{
		sig,
		"sha256=" + sig,
		"v1=" + sig,
		"ts=1704067200,v1=" + sig,
		"signature=" + sig,
		"ts=1704067200, signature=" + sig,
	}
	for _, header := range headers {
		res, err := AuthenticateWebhook(body, header, testWebhookSecret, "")
		if err != nil || !res.Valid {
			t.Fatalf("header %q should validate, err=%v errors=%v", header, err, res.Errors)
		}
	}
}

func TestAuthenticateWebhook_TamperedPayloadOrHash(t *testing.T) {
	body := validEventBody()
	sig := signBody(body, testWebhookSecret)

	// Flip one byte of the payload.
	tampered := append([]byte(nil), body...)
	tampered[10] ^= 0x01
	if _, err := AuthenticateWebhook(tampered, "v1="+sig, testWebhookSecret, ""); err == nil {
		t.Fatalf("tampered payload should fail verification")
	}

	// Flip one nibble of the hash.
	badSig := []byte(sig)
	if badSig[0] == 'a' {
		badSig[0] = 'b'
	} else {
		badSig[0] = 'a'
	}
	if _, err := AuthenticateWebhook(body, "v1="+string(badSig), testWebhookSecret, ""); err == nil {
		t.Fatalf("tampered hash should fail verification")
	}

	// Wrong secret.
	if _, err := AuthenticateWebhook(body, "v1="+sig, "other-secret", ""); err == nil {
		t.Fatalf("wrong secret should fail verification")
	}

	var authErr *AuthenticationError
	_, err := AuthenticateWebhook(body, "v1=zzzz", testWebhookSecret, "")
	if err == nil {
		t.Fatalf("non-hex hash should fail verification")
	}
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %T", err)
	}
}

func TestAuthenticateWebhook_StructureValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing action", body: `{"api_version":"v1","data":{"id":"1"},"date_created":"x","id":1,"type":"payment","user_id":1}`},
		{name: "missing data", body: `{"action":"payment.updated","api_version":"v1","date_created":"x","id":1,"type":"payment","user_id":1}`},
		{name: "mistyped action", body: `{"action":7,"api_version":"v1","data":{"id":"1"},"date_created":"x","id":1,"type":"payment","user_id":1}`},
		{name: "mistyped data", body: `{"action":"payment.updated","api_version":"v1","data":"nope","date_created":"x","id":1,"type":"payment","user_id":1}`},
		{name: "missing user_id", body: `{"action":"payment.updated","api_version":"v1","data":{"id":"1"},"date_created":"x","id":1,"type":"payment"}`},
		{name: "non-numeric data id", body: `{"action":"payment.updated","api_version":"v1","data":{"id":"abc123"},"date_created":"x","id":1,"type":"payment","user_id":1}`},
		{name: "null data id", body: `{"action":"payment.updated","api_version":"v1","data":{"id":null},"date_created":"x","id":1,"type":"payment","user_id":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(tt.body)
			header := "v1=" + signBody(body, testWebhookSecret)
			res, err := AuthenticateWebhook(body, header, testWebhookSecret, "")
			if err == nil {
				t.Fatalf("expected rejection, got valid=%v", res.Valid)
			}
			if res.Valid {
				t.Fatalf("result must not be valid")
			}
			if len(res.Errors) == 0 {
				t.Fatalf("expected at least one error reason")
			}
		})
	}
}

func TestAuthenticateWebhook_UnknownActionIsWarningOnly(t *testing.T) {
	body := []byte(`{"action":"payment.refunded","api_version":"v1","data":{"id":42},"date_created":"x","id":1,"type":"payment","user_id":1}`)
	header := "v1=" + signBody(body, testWebhookSecret)

	res, err := AuthenticateWebhook(body, header, testWebhookSecret, "")
	if err != nil {
		t.Fatalf("unknown action must not reject: %v", err)
	}
	if !res.Valid || res.PaymentID != "42" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "payment.refunded") {
		t.Fatalf("expected unknown-action warning, got %v", res.Warnings)
	}
}

func TestAuthenticateWebhook_PrivateSourceIsWarningOnly(t *testing.T) {
	body := validEventBody()
	header := "v1=" + signBody(body, testWebhookSecret)

	for _, ip := range []string{"127.0.0.1", "10.0.0.5", "192.168.1.20", "::1"} {
		res, err := AuthenticateWebhook(body, header, testWebhookSecret, ip)
		if err != nil || !res.Valid {
			t.Fatalf("private source %s must not reject, err=%v", ip, err)
		}
		if len(res.Warnings) != 1 {
			t.Fatalf("expected one warning for %s, got %v", ip, res.Warnings)
		}
	}
}

func TestExtractPaymentID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "123456789", want: "123456789"},
		{in: "abc123", wantErr: true},
		{in: "", wantErr: true},
		{in: "null", wantErr: true},
	}

	for _, tt := range tests {
		got, err := extractPaymentID(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("extractPaymentID(%q) should fail", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("extractPaymentID(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("extractPaymentID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSignatureHash(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "abcdef", want: "abcdef"},
		{in: "sha256=abcdef", want: "abcdef"},
		{in: "v1=abcdef", want: "abcdef"},
		{in: "ts=1704067200,v1=abcdef", want: "abcdef"},
		{in: "signature=abcdef,ts=1704067200", want: "abcdef"},
		{in: " ts=1, v1=abcdef ", want: "abcdef"},
	}

	for _, tt := range tests {
		if got := parseSignatureHash(tt.in); got != tt.want {
			t.Fatalf("parseSignatureHash(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
