package midtrans

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/payflow-core/internal/constants"
	"github.com/payflow-core/internal/gateway"
	"github.com/payflow-core/internal/models"
)

func TestParseAndValidateConfig(t *testing.T) {
	cfg, err := ParseConfig(map[string]interface{}{
		"base_url":   "https://api.sandbox.midtrans.com",
		"server_key": "SB-Mid-server-abc",
		"notify_url": "https://example.com/api/v1/payments/callback",
	})
	if err != nil {
		t.Fatalf("parse config failed: %v", err)
	}
	if cfg.ServerKey != "SB-Mid-server-abc" {
		t.Fatalf("unexpected server key: %s", cfg.ServerKey)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate config failed: %v", err)
	}
}

func TestValidateConfigMissingServerKey(t *testing.T) {
	cfg, err := ParseConfig(map[string]interface{}{
		"base_url": "https://api.sandbox.midtrans.com",
	})
	if err != nil {
		t.Fatalf("parse config failed: %v", err)
	}
	if err := ValidateConfig(cfg); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestValidatePaymentInput(t *testing.T) {
	provider := NewProvider(nil)
	cfg := models.JSON{
		"base_url":   "https://api.sandbox.midtrans.com",
		"server_key": "SB-Mid-server-abc",
	}

	result, err := provider.Validate(context.Background(), cfg, gateway.ValidateInput{
		TransactionRef: "TXN-001",
		Method:         constants.MethodCreditCard,
		Amount:         models.NewMoneyFromInt(100_000),
		CustomerEmail:  "budi@example.com",
	})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !result.Valid || len(result.Errors) != 0 {
		t.Fatalf("expected valid result, got %+v", result)
	}

	rejected, err := provider.Validate(context.Background(), cfg, gateway.ValidateInput{
		TransactionRef: "TXN-002",
		Method:         constants.MethodVirtualAccount,
		Amount:         models.NewMoneyFromInt(100_000),
	})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if rejected.Valid {
		t.Fatalf("expected virtual_account to be rejected")
	}
	if len(rejected.Warnings) == 0 {
		t.Fatalf("expected missing contact warning")
	}
}

func TestChargeSettlement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/charge" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "Basic ") {
			t.Fatalf("expected basic auth header, got %q", auth)
		}
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload failed: %v", err)
		}
		if payload["payment_type"] != "gopay" {
			t.Fatalf("expected gopay payment type, got %v", payload["payment_type"])
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"transaction_id":     "mt-txn-001",
			"transaction_status": "settlement",
		})
	}))
	defer server.Close()

	provider := NewProvider(server.Client())
	cfg := models.JSON{"base_url": server.URL, "server_key": "SB-Mid-server-abc"}
	result, err := provider.Charge(context.Background(), cfg, gateway.ChargeInput{
		PaymentID:      "pay-1",
		TransactionRef: "TXN-001",
		Method:         constants.MethodEWallet,
		Amount:         models.NewMoneyFromInt(1_031_000),
	})
	if err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	if result.ProviderRef != "mt-txn-001" {
		t.Fatalf("unexpected provider ref: %s", result.ProviderRef)
	}
	if result.Status != models.StatusSuccess {
		t.Fatalf("expected success status, got %s", result.Status)
	}
}

func TestChargeDenyMapsToFailedResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"transaction_id":     "mt-txn-002",
			"transaction_status": "deny",
		})
	}))
	defer server.Close()

	provider := NewProvider(server.Client())
	cfg := models.JSON{"base_url": server.URL, "server_key": "SB-Mid-server-abc"}
	result, err := provider.Charge(context.Background(), cfg, gateway.ChargeInput{
		PaymentID:      "pay-2",
		TransactionRef: "TXN-002",
		Method:         constants.MethodCreditCard,
		Amount:         models.NewMoneyFromInt(100_000),
	})
	if err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	if result.Status != models.StatusFailed {
		t.Fatalf("expected failed status, got %s", result.Status)
	}
}

func TestQueryStatusPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/mt-txn-003/status" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"transaction_id":     "mt-txn-003",
			"transaction_status": "pending",
			"transaction_time":   "2026-08-30 10:15:00",
		})
	}))
	defer server.Close()

	provider := NewProvider(server.Client())
	cfg := models.JSON{"base_url": server.URL, "server_key": "SB-Mid-server-abc"}
	result, err := provider.QueryStatus(context.Background(), cfg, "mt-txn-003")
	if err != nil {
		t.Fatalf("query status failed: %v", err)
	}
	if result.Status != models.StatusProcessing {
		t.Fatalf("expected processing, got %s", result.Status)
	}
	if result.UpdatedAt.IsZero() {
		t.Fatalf("expected transaction_time to be parsed")
	}
}

func TestChargeUnknownStatusInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"transaction_id":     "mt-txn-004",
			"transaction_status": "teleported",
		})
	}))
	defer server.Close()

	provider := NewProvider(server.Client())
	cfg := models.JSON{"base_url": server.URL, "server_key": "SB-Mid-server-abc"}
	_, err := provider.Charge(context.Background(), cfg, gateway.ChargeInput{
		PaymentID:      "pay-4",
		TransactionRef: "TXN-004",
		Method:         constants.MethodEWallet,
		Amount:         models.NewMoneyFromInt(100_000),
	})
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected ErrResponseInvalid, got %v", err)
	}
}

func TestChargeServerErrorUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider := NewProvider(server.Client())
	cfg := models.JSON{"base_url": server.URL, "server_key": "SB-Mid-server-abc"}
	_, err := provider.Charge(context.Background(), cfg, gateway.ChargeInput{
		PaymentID:      "pay-5",
		TransactionRef: "TXN-005",
		Method:         constants.MethodEWallet,
		Amount:         models.NewMoneyFromInt(100_000),
	})
	if !errors.Is(err, gateway.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
