package public

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/payflow-core/internal/constants"
	"github.com/payflow-core/internal/gateway"
	"github.com/payflow-core/internal/http/response"
	"github.com/payflow-core/internal/models"
	"github.com/payflow-core/internal/provider"
	"github.com/payflow-core/internal/repository"
	"github.com/payflow-core/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type stubProvider struct {
	code         string
	chargeStatus models.Status
}

func (s *stubProvider) Code() string { return s.code }

func (s *stubProvider) ValidateConfig(cfg models.JSON) error { return nil }

func (s *stubProvider) Validate(ctx context.Context, cfg models.JSON, input gateway.ValidateInput) (*gateway.ValidateResult, error) {
	return &gateway.ValidateResult{Valid: true}, nil
}

func (s *stubProvider) Charge(ctx context.Context, cfg models.JSON, input gateway.ChargeInput) (*gateway.ChargeResult, error) {
	return &gateway.ChargeResult{ProviderRef: "stub-" + input.PaymentID, Status: s.chargeStatus}, nil
}

func (s *stubProvider) QueryStatus(ctx context.Context, cfg models.JSON, providerRef string) (*gateway.StatusResult, error) {
	return &gateway.StatusResult{Status: s.chargeStatus, ProviderRef: providerRef}, nil
}

func (s *stubProvider) Cancel(ctx context.Context, cfg models.JSON, providerRef string) (*gateway.CancelResult, error) {
	return &gateway.CancelResult{ProviderRef: providerRef}, nil
}

func (s *stubProvider) Refund(ctx context.Context, cfg models.JSON, input gateway.RefundInput) (*gateway.RefundResult, error) {
	return &gateway.RefundResult{ProviderRef: "rf-" + input.RefundID}, nil
}

func setupHandlerTest(t *testing.T) (*Handler, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Gateway{}, &models.Payment{}, &models.RefundRecord{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	if err := db.Create(&models.Gateway{
		Code:             constants.GatewayXendit,
		Name:             "Xendit",
		SupportedMethods: models.StringArray{constants.MethodEWallet, constants.MethodBankTransfer},
		FeePercent:       models.NewMoneyFromDecimal(decimal.NewFromFloat(2.5)),
		FeeFixed:         models.NewMoneyFromInt(3000),
		MinAmount:        models.NewMoneyFromInt(10_000),
		MaxAmount:        models.NewMoneyFromInt(1_000_000_000),
		SupportsRefund:   true,
		IsActive:         true,
		SortOrder:        1,
	}).Error; err != nil {
		t.Fatalf("seed gateway failed: %v", err)
	}

	paymentRepo := repository.NewPaymentRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	gatewayRepo := repository.NewGatewayRepository(db)
	gatewaySvc := service.NewGatewayService(gatewayRepo)
	validator := service.NewPaymentValidator(gatewaySvc, service.ValidatorOptions{
		MaxAmount: models.NewMoneyFromInt(10_000_000_000),
	})
	registry := gateway.NewRegistry()
	registry.Register(&stubProvider{code: constants.GatewayXendit, chargeStatus: models.StatusSuccess})
	notifySvc := service.NewNotificationService(nil)
	paymentSvc := service.NewPaymentService(db, paymentRepo, refundRepo, gatewaySvc, validator, registry, nil, notifySvc, service.PaymentOptions{})
	statusSvc := service.NewStatusSyncService(db, paymentRepo, gatewaySvc, registry, notifySvc, 5*time.Minute, 10*time.Second)

	handler := New(&provider.Container{
		Registry:            registry,
		PaymentRepo:         paymentRepo,
		GatewayRepo:         gatewayRepo,
		RefundRepo:          refundRepo,
		GatewayService:      gatewaySvc,
		Validator:           validator,
		NotificationService: notifySvc,
		PaymentService:      paymentSvc,
		StatusSyncService:   statusSvc,
	})
	return handler, db
}

func jsonRequest(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return w, c
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	return envelope
}

func envelopeCode(t *testing.T, envelope map[string]interface{}) int {
	t.Helper()
	code, ok := envelope["status_code"].(float64)
	if !ok {
		t.Fatalf("missing status_code in response: %v", envelope)
	}
	return int(code)
}

func TestProcessPaymentHandlerSuccess(t *testing.T) {
	handler, _ := setupHandlerTest(t)

	body := `{
		"method": "e_wallet",
		"amount": 1000000,
		"transaction_ref": "TXN-H-001",
		"customer": {"name": "Budi", "email": "budi@example.com", "phone": "+628123"}
	}`
	w, c := jsonRequest(t, http.MethodPost, "/api/v1/payments", body)
	handler.ProcessPayment(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected http 200, got %d", w.Code)
	}
	envelope := decodeEnvelope(t, w)
	if code := envelopeCode(t, envelope); code != response.CodeOK {
		t.Fatalf("expected status_code 0, got %d", code)
	}
	data, _ := envelope["data"].(map[string]interface{})
	payment, _ := data["payment"].(map[string]interface{})
	if payment["status"] != constants.PaymentStatusSuccess {
		t.Fatalf("expected success payment, got %v", payment["status"])
	}
	if payment["gross_amount"] != "1028000.00" {
		t.Fatalf("expected gross 1028000.00, got %v", payment["gross_amount"])
	}
}

func TestProcessPaymentHandlerValidationFailure(t *testing.T) {
	handler, _ := setupHandlerTest(t)

	body := `{
		"method": "e_wallet",
		"amount": 1000000,
		"transaction_ref": "TXN-H-002",
		"customer": {"name": "Budi"}
	}`
	w, c := jsonRequest(t, http.MethodPost, "/api/v1/payments", body)
	handler.ProcessPayment(c)

	envelope := decodeEnvelope(t, w)
	if code := envelopeCode(t, envelope); code != response.CodeBadRequest {
		t.Fatalf("expected status_code 400, got %d", code)
	}
	data, _ := envelope["data"].(map[string]interface{})
	if _, ok := data["validation"]; !ok {
		t.Fatalf("expected validation detail in response, got %v", data)
	}
}

func TestGetPaymentHandlerNotFound(t *testing.T) {
	handler, _ := setupHandlerTest(t)

	w, c := jsonRequest(t, http.MethodGet, "/api/v1/payments/missing", "")
	c.Params = gin.Params{{Key: "id", Value: "no-such-payment"}}
	handler.GetPayment(c)

	envelope := decodeEnvelope(t, w)
	if code := envelopeCode(t, envelope); code != response.CodeNotFound {
		t.Fatalf("expected status_code 404, got %d", code)
	}
}

func TestCancelPaymentHandlerStateConflict(t *testing.T) {
	handler, db := setupHandlerTest(t)
	now := time.Now()
	payment := &models.Payment{
		ID:             "pay-settled-1",
		TransactionRef: "TXN-H-003",
		GatewayID:      1,
		GatewayCode:    constants.GatewayXendit,
		Method:         constants.MethodEWallet,
		Amount:         models.NewMoneyFromInt(1_000_000),
		AdminFee:       models.NewMoneyFromInt(28_000),
		GrossAmount:    models.NewMoneyFromInt(1_028_000),
		RefundedAmount: models.NewMoneyFromInt(0),
		Status:         models.StatusSuccess,
		PaidAt:         &now,
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/payments/pay-settled-1/cancel", `{"reason":"test"}`)
	c.Params = gin.Params{{Key: "id", Value: "pay-settled-1"}}
	handler.CancelPayment(c)

	envelope := decodeEnvelope(t, w)
	if code := envelopeCode(t, envelope); code != response.CodeConflict {
		t.Fatalf("expected status_code 409, got %d", code)
	}
}

func TestRefundPaymentHandlerLimitExceeded(t *testing.T) {
	handler, db := setupHandlerTest(t)
	now := time.Now()
	payment := &models.Payment{
		ID:             "pay-settled-2",
		TransactionRef: "TXN-H-004",
		GatewayID:      1,
		GatewayCode:    constants.GatewayXendit,
		Method:         constants.MethodEWallet,
		Amount:         models.NewMoneyFromInt(1_000_000),
		AdminFee:       models.NewMoneyFromInt(0),
		GrossAmount:    models.NewMoneyFromInt(1_000_000),
		RefundedAmount: models.NewMoneyFromInt(0),
		Status:         models.StatusSuccess,
		ProviderRef:    "stub-pay-settled-2",
		PaidAt:         &now,
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	w, c := jsonRequest(t, http.MethodPost, "/api/v1/payments/pay-settled-2/refund", `{"amount": 2000000}`)
	c.Params = gin.Params{{Key: "id", Value: "pay-settled-2"}}
	handler.RefundPayment(c)

	envelope := decodeEnvelope(t, w)
	if code := envelopeCode(t, envelope); code != response.CodeLimitExceeded {
		t.Fatalf("expected status_code 422, got %d", code)
	}
}

func TestCheckStatusHandlerCachedLookup(t *testing.T) {
	handler, db := setupHandlerTest(t)
	payment := &models.Payment{
		ID:             "pay-sync-1",
		TransactionRef: "TXN-H-005",
		GatewayID:      1,
		GatewayCode:    constants.GatewayXendit,
		Method:         constants.MethodEWallet,
		Amount:         models.NewMoneyFromInt(1_000_000),
		AdminFee:       models.NewMoneyFromInt(0),
		GrossAmount:    models.NewMoneyFromInt(1_000_000),
		RefundedAmount: models.NewMoneyFromInt(0),
		Status:         models.StatusProcessing,
		ProviderRef:    "stub-pay-sync-1",
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	w, c := jsonRequest(t, http.MethodGet, "/api/v1/payments/pay-sync-1/status?force_refresh=true", "")
	c.Params = gin.Params{{Key: "id", Value: "pay-sync-1"}}
	handler.CheckStatus(c)

	envelope := decodeEnvelope(t, w)
	if code := envelopeCode(t, envelope); code != response.CodeOK {
		t.Fatalf("expected status_code 0, got %d", code)
	}
	data, _ := envelope["data"].(map[string]interface{})
	if data["status"] != constants.PaymentStatusSuccess {
		t.Fatalf("expected provider-confirmed success, got %v", data["status"])
	}
}
