package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/payflow-core/internal/constants"
	"github.com/payflow-core/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupPaymentRepositoryTest(t *testing.T) (*GormPaymentRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:payment_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Gateway{},
		&models.Payment{},
		&models.RefundRecord{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewPaymentRepository(db), db
}

func createRepoTestPayment(t *testing.T, repo *GormPaymentRepository, seq int, gatewayCode, method, status string, amount int64, createdAt time.Time) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		ID:             fmt.Sprintf("pay-repo-%d", seq),
		TransactionRef: fmt.Sprintf("TXN-REPO-%03d", seq),
		GatewayID:      1,
		GatewayCode:    gatewayCode,
		Method:         method,
		Amount:         models.NewMoneyFromInt(amount),
		AdminFee:       models.NewMoneyFromInt(0),
		GrossAmount:    models.NewMoneyFromInt(amount),
		RefundedAmount: models.NewMoneyFromInt(0),
		Status:         models.Status(status),
		CreatedAt:      createdAt,
	}
	if err := repo.Create(payment); err != nil {
		t.Fatalf("create payment %d failed: %v", seq, err)
	}
	return payment
}

func seedRepoTestPayments(t *testing.T, repo *GormPaymentRepository) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	createRepoTestPayment(t, repo, 1, constants.GatewayMidtrans, constants.MethodCreditCard, constants.PaymentStatusSuccess, 500_000, base)
	createRepoTestPayment(t, repo, 2, constants.GatewayXendit, constants.MethodEWallet, constants.PaymentStatusProcessing, 1_000_000, base.Add(10*time.Minute))
	createRepoTestPayment(t, repo, 3, constants.GatewayXendit, constants.MethodEWallet, constants.PaymentStatusSuccess, 2_000_000, base.Add(20*time.Minute))
	createRepoTestPayment(t, repo, 4, constants.GatewayDoku, constants.MethodBankTransfer, constants.PaymentStatusFailed, 100_000, base.Add(30*time.Minute))
}

func TestPaymentRepositoryListFilterByStatusAndMethod(t *testing.T) {
	repo, _ := setupPaymentRepositoryTest(t)
	seedRepoTestPayments(t, repo)

	payments, total, err := repo.List(PaymentListFilter{
		Status: constants.PaymentStatusSuccess,
		Method: constants.MethodEWallet,
	})
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if total != 1 || len(payments) != 1 {
		t.Fatalf("expected 1 payment, got total=%d len=%d", total, len(payments))
	}
	if payments[0].ID != "pay-repo-3" {
		t.Fatalf("expected pay-repo-3, got %s", payments[0].ID)
	}
}

func TestPaymentRepositoryListFilterByGateway(t *testing.T) {
	repo, _ := setupPaymentRepositoryTest(t)
	seedRepoTestPayments(t, repo)

	_, total, err := repo.List(PaymentListFilter{GatewayCode: constants.GatewayXendit})
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 xendit payments, got %d", total)
	}
}

func TestPaymentRepositoryListFilterByAmountRange(t *testing.T) {
	repo, _ := setupPaymentRepositoryTest(t)
	seedRepoTestPayments(t, repo)

	min := models.NewMoneyFromInt(400_000)
	max := models.NewMoneyFromInt(1_500_000)
	payments, total, err := repo.List(PaymentListFilter{AmountMin: &min, AmountMax: &max})
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 payments in range, got %d", total)
	}
	for _, p := range payments {
		if p.Amount.Decimal.LessThan(min.Decimal) || p.Amount.Decimal.GreaterThan(max.Decimal) {
			t.Fatalf("payment %s amount %s out of range", p.ID, p.Amount.String())
		}
	}
}

func TestPaymentRepositoryListFilterByDateRange(t *testing.T) {
	repo, _ := setupPaymentRepositoryTest(t)
	seedRepoTestPayments(t, repo)

	from := time.Now().Add(-45 * time.Minute)
	to := time.Now().Add(-25 * time.Minute)
	_, total, err := repo.List(PaymentListFilter{CreatedFrom: &from, CreatedTo: &to})
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 payments in window, got %d", total)
	}
}

func TestPaymentRepositoryListSortByAmountDesc(t *testing.T) {
	repo, _ := setupPaymentRepositoryTest(t)
	seedRepoTestPayments(t, repo)

	payments, _, err := repo.List(PaymentListFilter{SortBy: constants.SortByAmount})
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if len(payments) != 4 {
		t.Fatalf("expected 4 payments, got %d", len(payments))
	}
	for i := 1; i < len(payments); i++ {
		if payments[i].Amount.Decimal.GreaterThan(payments[i-1].Amount.Decimal) {
			t.Fatalf("expected descending amounts, got %s before %s", payments[i-1].Amount.String(), payments[i].Amount.String())
		}
	}
}

func TestPaymentRepositoryListDefaultSortNewestFirst(t *testing.T) {
	repo, _ := setupPaymentRepositoryTest(t)
	seedRepoTestPayments(t, repo)

	payments, _, err := repo.List(PaymentListFilter{})
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if len(payments) != 4 {
		t.Fatalf("expected 4 payments, got %d", len(payments))
	}
	if payments[0].ID != "pay-repo-4" || payments[len(payments)-1].ID != "pay-repo-1" {
		t.Fatalf("expected newest-first order, got %s .. %s", payments[0].ID, payments[len(payments)-1].ID)
	}
	for i := 1; i < len(payments); i++ {
		if payments[i].CreatedAt.After(payments[i-1].CreatedAt) {
			t.Fatalf("expected descending creation order")
		}
	}
}

func TestPaymentRepositoryListSortDirOverride(t *testing.T) {
	repo, _ := setupPaymentRepositoryTest(t)
	seedRepoTestPayments(t, repo)

	payments, _, err := repo.List(PaymentListFilter{SortBy: constants.SortByDate, SortDir: "asc"})
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	for i := 1; i < len(payments); i++ {
		if payments[i].CreatedAt.Before(payments[i-1].CreatedAt) {
			t.Fatalf("expected ascending creation order")
		}
	}
}

func TestPaymentRepositoryListPagination(t *testing.T) {
	repo, _ := setupPaymentRepositoryTest(t)
	seedRepoTestPayments(t, repo)

	page1, total, err := repo.List(PaymentListFilter{Page: 1, PageSize: 3})
	if err != nil {
		t.Fatalf("list page 1 failed: %v", err)
	}
	if total != 4 || len(page1) != 3 {
		t.Fatalf("expected total 4 with 3 rows, got total=%d len=%d", total, len(page1))
	}

	page2, _, err := repo.List(PaymentListFilter{Page: 2, PageSize: 3})
	if err != nil {
		t.Fatalf("list page 2 failed: %v", err)
	}
	if len(page2) != 1 {
		t.Fatalf("expected 1 row on page 2, got %d", len(page2))
	}
}

func TestPaymentRepositoryGetByTransactionRef(t *testing.T) {
	repo, _ := setupPaymentRepositoryTest(t)
	seedRepoTestPayments(t, repo)

	payment, err := repo.GetByTransactionRef("TXN-REPO-002")
	if err != nil {
		t.Fatalf("get by transaction ref failed: %v", err)
	}
	if payment == nil || payment.ID != "pay-repo-2" {
		t.Fatalf("expected pay-repo-2, got %+v", payment)
	}

	missing, err := repo.GetByTransactionRef("TXN-REPO-999")
	if err != nil {
		t.Fatalf("get missing ref failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing ref, got %+v", missing)
	}
}

func TestPaymentRepositoryGetByIDMissingReturnsNil(t *testing.T) {
	repo, _ := setupPaymentRepositoryTest(t)

	payment, err := repo.GetByID("no-such-id")
	if err != nil {
		t.Fatalf("get by id failed: %v", err)
	}
	if payment != nil {
		t.Fatalf("expected nil payment, got %+v", payment)
	}
}
