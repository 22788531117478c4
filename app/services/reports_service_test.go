package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestGetDailySales(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	sales := NewSalesService(products, ledger)
	reports := NewReportsService(ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 20)

	if _, err := sales.RecordSale(product.ID, 2, "cash", "", testActor); err != nil {
		t.Fatalf("first sale: %v", err)
	}
	if _, err := sales.RecordSale(product.ID, 3, "card", "", testActor); err != nil {
		t.Fatalf("second sale: %v", err)
	}

	rows, err := reports.GetDailySales(time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("daily sales: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d day rows, want 1", len(rows))
	}
	if rows[0].SaleCount != 2 {
		t.Fatalf("sale count = %d, want 2", rows[0].SaleCount)
	}
	if rows[0].UnitsSold != 5 {
		t.Fatalf("units sold = %d, want 5", rows[0].UnitsSold)
	}
	if !rows[0].TotalValue.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("total value = %s, want 500", rows[0].TotalValue)
	}
}

func TestGetProductMovement(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	sales := NewSalesService(products, ledger)
	reports := NewReportsService(ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 10)

	if _, err := sales.RecordSale(product.ID, 3, "cash", "", testActor); err != nil {
		t.Fatalf("sale: %v", err)
	}
	if _, err := products.AdjustQuantity(product.ID, 5, "restock", testActor); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	movement, err := reports.GetProductMovement(product.ID, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("movement: %v", err)
	}
	// 10 initial + 5 restock in, 3 sold out
	if movement.UnitsIn != 15 {
		t.Fatalf("units in = %d, want 15", movement.UnitsIn)
	}
	if movement.UnitsOut != 3 {
		t.Fatalf("units out = %d, want 3", movement.UnitsOut)
	}
	if movement.Net != 12 {
		t.Fatalf("net = %d, want 12", movement.Net)
	}
}

func TestReconcileProductAfterMixedActivity(t *testing.T) {
	newTestDB(t)
	ledger := NewLedgerService()
	products := NewProductService(ledger)
	sales := NewSalesService(products, ledger)
	reservations := NewReservationService(products, ledger)
	reports := NewReportsService(ledger)
	product := seedProduct(t, products, "Coffee", "100", "60", 20)

	if _, err := sales.RecordSale(product.ID, 4, "cash", "", testActor); err != nil {
		t.Fatalf("sale: %v", err)
	}
	held, err := reservations.Hold(product.ID, 3, "Ana", testActor)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := reservations.Convert(held.ID, "card", testActor); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if _, err := products.AdjustQuantity(product.ID, -2, "breakage", testActor); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	rec, err := reports.ReconcileProduct(product.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rec.Quantity != 11 {
		t.Fatalf("quantity = %d, want 11", rec.Quantity)
	}
	if !rec.Consistent {
		t.Fatalf("ledger net %d does not match quantity %d", rec.LedgerNet, rec.Quantity)
	}

	if _, err := reports.ReconcileProduct(9999); !IsNotFound(err) {
		t.Fatalf("unknown product: got %v, want NotFoundError", err)
	}
}
