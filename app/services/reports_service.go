package services

import (
	"time"

	"StockLedger/app/models"

	"github.com/shopspring/decimal"
)

// ReportsService aggregates ledger data for the dashboard. Rendering and
// formatting live in external collaborators; this service only computes.
type ReportsService struct {
	*BaseService
	ledger *LedgerService
}

// NewReportsService creates a new reports service
func NewReportsService(ledger *LedgerService) *ReportsService {
	return &ReportsService{
		BaseService: NewBaseService(),
		ledger:      ledger,
	}
}

// DailySales is one day's sale totals
type DailySales struct {
	Day        string          `json:"day"`
	SaleCount  int             `json:"sale_count"`
	UnitsSold  int             `json:"units_sold"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// GetDailySales returns per-day totals over a date range, newest day first.
// Voided sales are excluded.
func (s *ReportsService) GetDailySales(from, to time.Time) ([]DailySales, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}

	var rows []DailySales
	q := s.db.Model(&models.LedgerEntry{}).
		Select(`
			DATE(occurred_at) as day,
			COUNT(*) as sale_count,
			SUM(-quantity_delta) as units_sold,
			COALESCE(SUM(amount), 0) as total_value
		`).
		Where("type = ?", models.EntrySale)
	if !from.IsZero() {
		q = q.Where("occurred_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("occurred_at <= ?", to)
	}
	err := q.Group("DATE(occurred_at)").Order("day DESC").Scan(&rows).Error
	return rows, err
}

// ProductMovement summarizes a product's ledger activity over a range.
type ProductMovement struct {
	ProductID uint `json:"product_id"`
	UnitsIn   int  `json:"units_in"`
	UnitsOut  int  `json:"units_out"`
	Net       int  `json:"net"`
}

// GetProductMovement totals a product's inflows and outflows, voided sales
// included — the trail is forensic.
func (s *ReportsService) GetProductMovement(productID uint, from, to time.Time) (*ProductMovement, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}

	var result struct {
		UnitsIn  *int
		UnitsOut *int
	}
	q := s.db.Unscoped().Model(&models.LedgerEntry{}).
		Select(`
			SUM(CASE WHEN quantity_delta > 0 THEN quantity_delta ELSE 0 END) as units_in,
			SUM(CASE WHEN quantity_delta < 0 THEN -quantity_delta ELSE 0 END) as units_out
		`).
		Where("product_id = ?", productID)
	if !from.IsZero() {
		q = q.Where("occurred_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("occurred_at <= ?", to)
	}
	if err := q.Scan(&result).Error; err != nil {
		return nil, err
	}

	m := &ProductMovement{ProductID: productID}
	if result.UnitsIn != nil {
		m.UnitsIn = *result.UnitsIn
	}
	if result.UnitsOut != nil {
		m.UnitsOut = *result.UnitsOut
	}
	m.Net = m.UnitsIn - m.UnitsOut
	return m, nil
}

// Reconciliation compares a product's quantity against its ledger trail.
type Reconciliation struct {
	ProductID  uint `json:"product_id"`
	Quantity   int  `json:"quantity"`
	LedgerNet  int  `json:"ledger_net"`
	Consistent bool `json:"consistent"`
}

// ReconcileProduct checks the audit invariant for one product: the sum of
// every recorded delta must equal the current quantity minus the quantity
// recorded at creation (which the product_added entry carries).
func (s *ReportsService) ReconcileProduct(productID uint) (*Reconciliation, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}

	var product models.Product
	if err := s.db.First(&product, productID).Error; err != nil {
		return nil, &NotFoundError{Entity: "product", ID: productID}
	}

	net, err := s.ledger.NetQuantityDelta(productID)
	if err != nil {
		return nil, err
	}

	return &Reconciliation{
		ProductID:  productID,
		Quantity:   product.Quantity,
		LedgerNet:  net,
		Consistent: net == product.Quantity,
	}, nil
}
