package services

import (
	"fmt"
	"strings"
	"testing"

	"StockLedger/app/database"
	"StockLedger/app/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testActor = models.Actor{ID: "emp-1", Name: "Dana"}

// newTestDB opens a fresh named in-memory database for one test and points
// the service layer at it. The shared cache keeps the database alive for the
// whole test while the connection pool holds it open.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(d); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	database.SetDB(d)
	return d
}

func seedProduct(t *testing.T, s *ProductService, name string, price, distributorPrice string, quantity int) *models.Product {
	t.Helper()

	product, err := s.CreateProduct(&models.Product{
		Name:             name,
		Category:         "test",
		Price:            decimal.RequireFromString(price),
		DistributorPrice: decimal.RequireFromString(distributorPrice),
		Quantity:         quantity,
	}, testActor)
	if err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return product
}

func mustQuantity(t *testing.T, s *ProductService, id uint, want int) {
	t.Helper()

	product, err := s.GetProduct(id)
	if err != nil {
		t.Fatalf("get product %d: %v", id, err)
	}
	if product.Quantity != want {
		t.Fatalf("product %d quantity = %d, want %d", id, product.Quantity, want)
	}
}
