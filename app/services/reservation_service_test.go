package services

import (
	"errors"
	"testing"

	"StockLedger/app/models"

	"github.com/shopspring/decimal"
)

func TestHoldDeductsStock(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	reservations := NewReservationService(products, ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 10)

	held, err := reservations.Hold(product.ID, 3, "Ana", testActor)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if held.Status != models.ReservationHeld {
		t.Fatalf("status = %s, want held", held.Status)
	}
	if !held.Amount.Equal(decimal.RequireFromString("300")) {
		t.Fatalf("amount = %s, want 300", held.Amount)
	}
	if held.HoldEntryID == 0 {
		t.Fatal("hold entry not linked")
	}
	mustQuantity(t, products, product.ID, 7)

	entry, err := ledger.GetEntry(held.HoldEntryID)
	if err != nil {
		t.Fatalf("get hold entry: %v", err)
	}
	if entry.QuantityDelta != -3 {
		t.Fatalf("hold entry delta = %d, want -3", entry.QuantityDelta)
	}
}

func TestHoldInsufficientStock(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	reservations := NewReservationService(products, ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 10)

	_, err := reservations.Hold(product.ID, 20, "Ana", testActor)
	var stock *InsufficientStockError
	if !errors.As(err, &stock) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}
	mustQuantity(t, products, product.ID, 10)

	open, err := reservations.GetReservations(models.ReservationHeld)
	if err != nil {
		t.Fatalf("list holds: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("failed hold left %d reservations", len(open))
	}
}

func TestConvertProducesSingleSale(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	reservations := NewReservationService(products, ledger)
	reports := NewReportsService(ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 10)

	held, err := reservations.Hold(product.ID, 3, "Ana", testActor)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	converted, err := reservations.Convert(held.ID, "cash", testActor)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if converted.Status != models.ReservationConverted {
		t.Fatalf("status = %s, want converted", converted.Status)
	}
	if converted.ConvertedAt == nil || converted.SaleEntryID == nil {
		t.Fatal("conversion bookkeeping missing")
	}

	// Stock was already deducted at hold time
	mustQuantity(t, products, product.ID, 7)

	sales, err := ledger.Query(LedgerFilter{ProductID: product.ID, Type: models.EntrySale})
	if err != nil {
		t.Fatalf("query sales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("got %d sale entries, want exactly 1", len(sales))
	}
	if !sales[0].Amount.Equal(decimal.RequireFromString("300")) {
		t.Fatalf("sale amount = %s, want 300", sales[0].Amount)
	}
	if sales[0].QuantityDelta != -3 {
		t.Fatalf("sale delta = %d, want -3", sales[0].QuantityDelta)
	}

	rec, err := reports.ReconcileProduct(product.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !rec.Consistent {
		t.Fatalf("ledger inconsistent after convert: quantity %d, net %d", rec.Quantity, rec.LedgerNet)
	}
}

func TestReleaseRestoresStock(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	reservations := NewReservationService(products, ledger)
	reports := NewReportsService(ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 10)

	held, err := reservations.Hold(product.ID, 3, "Ana", testActor)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	released, err := reservations.Release(held.ID, testActor)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.Status != models.ReservationReleased || released.ReleasedAt == nil {
		t.Fatalf("release bookkeeping missing: %+v", released)
	}
	mustQuantity(t, products, product.ID, 10)

	// Hold and reversal stay on the trail as a net-zero pair
	adjustments, err := ledger.Query(LedgerFilter{ProductID: product.ID, Type: models.EntryInventoryAdjustment})
	if err != nil {
		t.Fatalf("query adjustments: %v", err)
	}
	if len(adjustments) != 2 {
		t.Fatalf("got %d adjustment entries, want 2", len(adjustments))
	}

	rec, err := reports.ReconcileProduct(product.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !rec.Consistent {
		t.Fatalf("ledger inconsistent after release: quantity %d, net %d", rec.Quantity, rec.LedgerNet)
	}
}

func TestTerminalReservationsRejectTransitions(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	reservations := NewReservationService(products, ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 10)

	converted, err := reservations.Hold(product.ID, 2, "Ana", testActor)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := reservations.Convert(converted.ID, "cash", testActor); err != nil {
		t.Fatalf("convert: %v", err)
	}

	var ise *InvalidStateError
	if _, err := reservations.Release(converted.ID, testActor); !errors.As(err, &ise) {
		t.Fatalf("release after convert: got %v, want InvalidStateError", err)
	}
	if _, err := reservations.Convert(converted.ID, "cash", testActor); !errors.As(err, &ise) {
		t.Fatalf("double convert: got %v, want InvalidStateError", err)
	}

	releasedRes, err := reservations.Hold(product.ID, 2, "Ben", testActor)
	if err != nil {
		t.Fatalf("second hold: %v", err)
	}
	if _, err := reservations.Release(releasedRes.ID, testActor); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := reservations.Convert(releasedRes.ID, "cash", testActor); !errors.As(err, &ise) {
		t.Fatalf("convert after release: got %v, want InvalidStateError", err)
	}

	// Stock reflects one converted hold of 2 and one released hold
	mustQuantity(t, products, product.ID, 8)
}

func TestHoldUsesStoredPrice(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	reservations := NewReservationService(products, ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 10)

	newPrice := decimal.RequireFromString("120")
	if _, err := products.UpdateProduct(product.ID, models.ProductPatch{Price: &newPrice}, testActor); err != nil {
		t.Fatalf("update price: %v", err)
	}

	held, err := reservations.Hold(product.ID, 2, "Ana", testActor)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if !held.UnitPrice.Equal(newPrice) {
		t.Fatalf("unit price = %s, want stored price %s", held.UnitPrice, newPrice)
	}
	if !held.Amount.Equal(decimal.RequireFromString("240")) {
		t.Fatalf("amount = %s, want 240", held.Amount)
	}
}
