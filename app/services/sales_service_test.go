package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"StockLedger/app/models"

	"github.com/shopspring/decimal"
)

func TestRecordSale(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	sales := NewSalesService(products, ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 10)

	sale, err := sales.RecordSale(product.ID, 2, "cash", "walk-in", testActor)
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if !sale.Amount.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("amount = %s, want 200", sale.Amount)
	}
	if sale.PaymentStatus != models.PaymentPaid {
		t.Fatalf("payment status = %s, want paid", sale.PaymentStatus)
	}
	if !sale.PaidAmount.Equal(sale.OriginalAmount) {
		t.Fatalf("paid %s != original %s", sale.PaidAmount, sale.OriginalAmount)
	}
	mustQuantity(t, products, product.ID, 8)
}

func TestRecordSaleInsufficientStock(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	sales := NewSalesService(products, ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 3)

	_, err := sales.RecordSale(product.ID, 5, "cash", "", testActor)
	var stock *InsufficientStockError
	if !errors.As(err, &stock) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}
	if stock.Requested != 5 || stock.Available != 3 {
		t.Fatalf("error detail = %+v", stock)
	}
	mustQuantity(t, products, product.ID, 3)

	entries, err := ledger.Query(LedgerFilter{ProductID: product.ID, Type: models.EntrySale})
	if err != nil {
		t.Fatalf("query sales: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed sale left %d entries", len(entries))
	}
}

func TestConcurrentSalesExactlyOneWins(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	sales := NewSalesService(products, ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 10)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sales.RecordSale(product.ID, 6, "cash", "", testActor)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var failures int
	for err := range errs {
		if err == nil {
			continue
		}
		var stock *InsufficientStockError
		if !errors.As(err, &stock) {
			t.Fatalf("unexpected error: %v", err)
		}
		failures++
	}
	if failures != 1 {
		t.Fatalf("got %d rejected sales, want exactly 1", failures)
	}
	mustQuantity(t, products, product.ID, 4)
}

func TestSetPaymentStatus(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	sales := NewSalesService(products, ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 10)

	sale, err := sales.RecordSale(product.ID, 2, "card", "", testActor)
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}

	var ve *ValidationError
	if _, err := sales.SetPaymentStatus(sale.ID, models.PaymentPartial, nil, testActor); !errors.As(err, &ve) {
		t.Fatalf("partial without amount: got %v, want ValidationError", err)
	}
	zero := decimal.Zero
	if _, err := sales.SetPaymentStatus(sale.ID, models.PaymentPartial, &zero, testActor); !errors.As(err, &ve) {
		t.Fatalf("partial of zero: got %v, want ValidationError", err)
	}
	full := sale.OriginalAmount
	if _, err := sales.SetPaymentStatus(sale.ID, models.PaymentPartial, &full, testActor); !errors.As(err, &ve) {
		t.Fatalf("partial equal to total: got %v, want ValidationError", err)
	}

	half := decimal.RequireFromString("100")
	updated, err := sales.SetPaymentStatus(sale.ID, models.PaymentPartial, &half, testActor)
	if err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if updated.PaymentStatus != models.PaymentPartial || !updated.PaidAmount.Equal(half) {
		t.Fatalf("partial not applied: %+v", updated)
	}

	updated, err = sales.SetPaymentStatus(sale.ID, models.PaymentUnpaid, nil, testActor)
	if err != nil {
		t.Fatalf("mark unpaid: %v", err)
	}
	if !updated.PaidAmount.IsZero() {
		t.Fatalf("unpaid paid amount = %s, want 0", updated.PaidAmount)
	}
	if !updated.OriginalAmount.Equal(sale.OriginalAmount) {
		t.Fatal("original amount drifted across payment edits")
	}

	updated, err = sales.SetPaymentStatus(sale.ID, models.PaymentPaid, nil, testActor)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if !updated.PaidAmount.Equal(sale.OriginalAmount) {
		t.Fatalf("paid amount = %s, want %s", updated.PaidAmount, sale.OriginalAmount)
	}

	// Payment edits never touch stock
	mustQuantity(t, products, product.ID, 8)

	if _, err := sales.SetPaymentStatus(9999, models.PaymentPaid, nil, testActor); !IsNotFound(err) {
		t.Fatalf("unknown sale: got %v, want NotFoundError", err)
	}
}

func TestDeleteSaleRestoringStock(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	sales := NewSalesService(products, ledger)
	reports := NewReportsService(ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 10)

	sale, err := sales.RecordSale(product.ID, 2, "cash", "", testActor)
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}

	if err := sales.DeleteSale(sale.ID, true, testActor); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	mustQuantity(t, products, product.ID, 10)

	if _, err := sales.GetSale(sale.ID); !IsNotFound(err) {
		t.Fatalf("voided sale still listed: %v", err)
	}

	rec, err := reports.ReconcileProduct(product.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !rec.Consistent {
		t.Fatalf("ledger inconsistent after voided sale: quantity %d, net %d", rec.Quantity, rec.LedgerNet)
	}
}

func TestDeleteSaleKeepingDeduction(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	sales := NewSalesService(products, ledger)
	reports := NewReportsService(ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 10)

	sale, err := sales.RecordSale(product.ID, 2, "cash", "", testActor)
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}

	if err := sales.DeleteSale(sale.ID, false, testActor); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	mustQuantity(t, products, product.ID, 8)

	rec, err := reports.ReconcileProduct(product.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !rec.Consistent {
		t.Fatalf("ledger inconsistent: quantity %d, net %d", rec.Quantity, rec.LedgerNet)
	}

	// Double delete must fail, the sale is already voided
	if err := sales.DeleteSale(sale.ID, false, testActor); !IsNotFound(err) {
		t.Fatalf("double delete: got %v, want NotFoundError", err)
	}
}

func TestGetSalesExcludesVoided(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	sales := NewSalesService(products, ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 10)

	first, err := sales.RecordSale(product.ID, 1, "cash", "", testActor)
	if err != nil {
		t.Fatalf("first sale: %v", err)
	}
	if _, err := sales.RecordSale(product.ID, 1, "cash", "", testActor); err != nil {
		t.Fatalf("second sale: %v", err)
	}
	if err := sales.DeleteSale(first.ID, true, testActor); err != nil {
		t.Fatalf("void first sale: %v", err)
	}

	listed, err := sales.GetSales(time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("got %d listed sales, want 1", len(listed))
	}
}
