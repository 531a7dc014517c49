package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGatewayClientGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/123456789" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer store-token" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 123456789,
			"status": "approved",
			"status_detail": "accredited",
			"transaction_amount": 1500,
			"payment_method_id": "master",
			"payment_type_id": "credit_card",
			"external_reference": "ord_1",
			"date_approved": "2024-05-01T12:34:56Z",
			"payer": {"email": "buyer@example.com"}
		}`))
	}))
	defer srv.Close()

	client := &GatewayClient{APIBaseURL: srv.URL, HTTPClient: srv.Client()}
	payment, err := client.GetPayment(context.Background(), "store-token", "123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.ID.String() != "123456789" {
		t.Fatalf("id = %s, want 123456789", payment.ID)
	}
	if payment.Status != "approved" || payment.TransactionAmount != 1500 {
		t.Fatalf("unexpected payment: %+v", payment)
	}
	if payment.Payer.Email != "buyer@example.com" {
		t.Fatalf("payer email = %q", payment.Payer.Email)
	}
}

func TestGatewayClientGetPaymentUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"payment not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := &GatewayClient{APIBaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := client.GetPayment(context.Background(), "store-token", "42")
	if err == nil {
		t.Fatalf("expected error for 404 response")
	}
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %T", err)
	}
}

func TestGatewayClientSearchApprovedPayments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("external_reference") != "ord_1" || q.Get("status") != "approved" {
			t.Errorf("unexpected query %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"id": 111, "status": "approved", "transaction_amount": 100},
			{"id": 222, "status": "approved", "transaction_amount": 200}
		]}`))
	}))
	defer srv.Close()

	client := &GatewayClient{APIBaseURL: srv.URL, HTTPClient: srv.Client()}
	results, err := client.SearchApprovedPayments(context.Background(), "store-token", "ord_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[1].ID.String() != "222" {
		t.Fatalf("second result id = %s, want 222", results[1].ID)
	}
}
