package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/payflow-core/internal/constants"
	"github.com/payflow-core/internal/gateway"
	"github.com/payflow-core/internal/models"

	"github.com/google/uuid"
)

func setupStatusSyncTest(t *testing.T) (*StatusSyncService, *paymentServiceTestEnv) {
	t.Helper()
	env := setupPaymentServiceTest(t)
	svc := NewStatusSyncService(env.db, env.payments, env.gatewaySvc, env.registry, NewNotificationService(nil), 5*time.Minute, 10*time.Second)
	return svc, env
}

func TestCheckStatusServesFromCacheWithinTTL(t *testing.T) {
	svc, env := setupStatusSyncTest(t)
	payment := env.createPayment(t, constants.GatewayXendit, models.StatusProcessing, 1_000_000, "xnd-sync-1")
	fake := env.providers[constants.GatewayXendit]
	fake.statusResult = &gateway.StatusResult{Status: models.StatusProcessing, ProviderRef: "xnd-sync-1"}

	status, err := svc.CheckStatus(context.Background(), payment.ID, false)
	if err != nil {
		t.Fatalf("first check failed: %v", err)
	}
	if status != models.StatusProcessing {
		t.Fatalf("expected processing, got %s", status)
	}
	if fake.statusCalls != 1 {
		t.Fatalf("expected one provider call, got %d", fake.statusCalls)
	}

	// TTL 内重复查询不回源
	if _, err := svc.CheckStatus(context.Background(), payment.ID, false); err != nil {
		t.Fatalf("cached check failed: %v", err)
	}
	if fake.statusCalls != 1 {
		t.Fatalf("expected cached status, provider called %d times", fake.statusCalls)
	}

	// 强制刷新必须回源
	if _, err := svc.CheckStatus(context.Background(), payment.ID, true); err != nil {
		t.Fatalf("forced check failed: %v", err)
	}
	if fake.statusCalls != 2 {
		t.Fatalf("expected force refresh to call provider, got %d calls", fake.statusCalls)
	}
}

func TestCheckStatusAppliesProviderTransition(t *testing.T) {
	svc, env := setupStatusSyncTest(t)
	payment := env.createPayment(t, constants.GatewayXendit, models.StatusProcessing, 1_000_000, "xnd-sync-2")
	env.providers[constants.GatewayXendit].statusResult = &gateway.StatusResult{
		Status:      models.StatusSuccess,
		ProviderRef: "xnd-sync-2",
		UpdatedAt:   time.Now(),
	}

	status, err := svc.CheckStatus(context.Background(), payment.ID, true)
	if err != nil {
		t.Fatalf("check status failed: %v", err)
	}
	if status != models.StatusSuccess {
		t.Fatalf("expected success, got %s", status)
	}

	reloaded := env.reload(t, payment.ID)
	if reloaded.Status != models.StatusSuccess {
		t.Fatalf("expected persisted success, got %s", reloaded.Status)
	}
	if reloaded.PaidAt == nil {
		t.Fatalf("expected paid_at to be set")
	}
	if reloaded.StatusSyncedAt == nil {
		t.Fatalf("expected status_synced_at to be set")
	}
}

func TestCheckStatusIgnoresStaleObservation(t *testing.T) {
	svc, env := setupStatusSyncTest(t)
	payment := env.createPayment(t, constants.GatewayXendit, models.StatusProcessing, 1_000_000, "xnd-sync-3")
	syncedAt := time.Now()
	if err := env.db.Model(&models.Payment{}).Where("id = ?", payment.ID).
		Update("status_synced_at", syncedAt).Error; err != nil {
		t.Fatalf("set synced_at failed: %v", err)
	}
	env.providers[constants.GatewayXendit].statusResult = &gateway.StatusResult{
		Status:      models.StatusFailed,
		ProviderRef: "xnd-sync-3",
		UpdatedAt:   syncedAt.Add(-time.Hour),
	}

	status, err := svc.CheckStatus(context.Background(), payment.ID, true)
	if err != nil {
		t.Fatalf("check status failed: %v", err)
	}
	if status != models.StatusProcessing {
		t.Fatalf("expected stale observation to be ignored, got %s", status)
	}
	if reloaded := env.reload(t, payment.ID); reloaded.Status != models.StatusProcessing {
		t.Fatalf("expected persisted processing, got %s", reloaded.Status)
	}
}

func TestCheckStatusTerminalShortCircuits(t *testing.T) {
	svc, env := setupStatusSyncTest(t)
	payment := env.createPayment(t, constants.GatewayXendit, models.StatusFailed, 1_000_000, "xnd-sync-4")

	status, err := svc.CheckStatus(context.Background(), payment.ID, true)
	if err != nil {
		t.Fatalf("check status failed: %v", err)
	}
	if status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", status)
	}
	if env.providers[constants.GatewayXendit].statusCalls != 0 {
		t.Fatalf("expected no provider call for terminal payment")
	}
}

func TestCheckStatusRejectsIllegalTransition(t *testing.T) {
	svc, env := setupStatusSyncTest(t)
	payment := env.createSettledPayment(t, constants.GatewayXendit, 1_000_000)
	env.providers[constants.GatewayXendit].statusResult = &gateway.StatusResult{
		Status:      models.StatusProcessing,
		ProviderRef: payment.ProviderRef,
		UpdatedAt:   time.Now().Add(time.Minute),
	}

	status, err := svc.CheckStatus(context.Background(), payment.ID, true)
	if err != nil {
		t.Fatalf("check status failed: %v", err)
	}
	if status != models.StatusSuccess {
		t.Fatalf("expected local success kept, got %s", status)
	}
	if reloaded := env.reload(t, payment.ID); reloaded.Status != models.StatusSuccess {
		t.Fatalf("expected persisted success, got %s", reloaded.Status)
	}
}

func TestCheckStatusProviderFailure(t *testing.T) {
	svc, env := setupStatusSyncTest(t)
	payment := env.createPayment(t, constants.GatewayXendit, models.StatusProcessing, 1_000_000, "xnd-sync-5")
	env.providers[constants.GatewayXendit].statusErr = gateway.ErrUnavailable

	_, err := svc.CheckStatus(context.Background(), payment.ID, true)
	if !errors.Is(err, ErrGatewayCall) {
		t.Fatalf("expected ErrGatewayCall, got %v", err)
	}
}

func TestCheckStatusNotFound(t *testing.T) {
	svc, _ := setupStatusSyncTest(t)

	_, err := svc.CheckStatus(context.Background(), uuid.NewString(), true)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckStatusInvalidateForcesNextLookup(t *testing.T) {
	svc, env := setupStatusSyncTest(t)
	payment := env.createPayment(t, constants.GatewayXendit, models.StatusProcessing, 1_000_000, "xnd-sync-6")
	fake := env.providers[constants.GatewayXendit]
	fake.statusResult = &gateway.StatusResult{Status: models.StatusProcessing, ProviderRef: "xnd-sync-6"}

	if _, err := svc.CheckStatus(context.Background(), payment.ID, false); err != nil {
		t.Fatalf("first check failed: %v", err)
	}
	svc.Invalidate(context.Background(), payment.ID)
	if _, err := svc.CheckStatus(context.Background(), payment.ID, false); err != nil {
		t.Fatalf("second check failed: %v", err)
	}
	if fake.statusCalls != 2 {
		t.Fatalf("expected invalidate to force provider lookup, got %d calls", fake.statusCalls)
	}
}
