package services

import (
	"fmt"
	"strings"
	"time"

	"StockLedger/app/logger"
	"StockLedger/app/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SalesService records direct sales and tracks payment status. The stock
// deduction of a sale is immutable once written; payment fields are the only
// part that may change afterwards.
type SalesService struct {
	*BaseService
	products *ProductService
	ledger   *LedgerService
	events   EventPublisher
}

// NewSalesService creates a new sales service
func NewSalesService(products *ProductService, ledger *LedgerService) *SalesService {
	return &SalesService{
		BaseService: NewBaseService(),
		products:    products,
		ledger:      ledger,
	}
}

// SetEventPublisher attaches the live event feed
func (s *SalesService) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// RecordSale deducts stock and writes the sale entry in one transaction.
// The amount is computed from the stored price read inside the locked
// transaction, never from a caller-supplied figure.
func (s *SalesService) RecordSale(productID uint, quantity int, paymentMethod, notes string, actor models.Actor) (*models.LedgerEntry, error) {
	if quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}
	if strings.TrimSpace(paymentMethod) == "" {
		return nil, &ValidationError{Field: "payment_method", Reason: "required"}
	}
	if err := validateActor(actor); err != nil {
		return nil, err
	}

	unlock := lockProduct(productID)
	defer unlock()

	var entry *models.LedgerEntry
	err := s.WithTransaction(func(tx *gorm.DB) error {
		product, err := s.products.adjustQuantityTx(tx, productID, -quantity)
		if err != nil {
			return err
		}

		amount := product.Price.Mul(decimal.NewFromInt(int64(quantity)))
		entry = &models.LedgerEntry{
			Type:           models.EntrySale,
			ProductID:      product.ID,
			ProductName:    product.Name,
			QuantityDelta:  -quantity,
			UnitPrice:      product.Price,
			Amount:         amount,
			PaymentStatus:  models.PaymentPaid,
			PaymentMethod:  paymentMethod,
			OriginalAmount: amount,
			PaidAmount:     amount,
			ActorID:        actor.ID,
			ActorName:      actor.Name,
			Notes:          notes,
		}
		return s.ledger.appendTx(tx, entry)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("sale recorded",
		zap.Uint("sale_id", entry.ID),
		zap.Uint("product_id", productID),
		zap.Int("quantity", quantity),
		zap.String("amount", entry.Amount.StringFixed(2)))
	publish(s.events, EventSaleRecorded, entry)
	return entry, nil
}

// SetPaymentStatus moves a sale between unpaid, partial and paid. A partial
// payment needs an amount strictly between zero and the original total. The
// original amount was captured when the sale was written, so repeated
// partial edits never lose the baseline. Payment edits never touch stock.
func (s *SalesService) SetPaymentStatus(saleID uint, status models.PaymentStatus, partialAmount *decimal.Decimal, actor models.Actor) (*models.LedgerEntry, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}

	var entry models.LedgerEntry
	err := s.WithTransaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("type = ?", models.EntrySale).
			First(&entry, saleID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Entity: "sale", ID: saleID}
			}
			return err
		}

		switch status {
		case models.PaymentPaid:
			entry.PaidAmount = entry.OriginalAmount
		case models.PaymentUnpaid:
			entry.PaidAmount = decimal.Zero
		case models.PaymentPartial:
			if partialAmount == nil {
				return &ValidationError{Field: "partial_amount", Reason: "required for partial status"}
			}
			if !partialAmount.IsPositive() || !partialAmount.LessThan(entry.OriginalAmount) {
				return &ValidationError{
					Field:  "partial_amount",
					Reason: fmt.Sprintf("must be between 0 and %s exclusive", entry.OriginalAmount.StringFixed(2)),
				}
			}
			entry.PaidAmount = *partialAmount
		default:
			return &ValidationError{Field: "status", Reason: "unknown payment status " + string(status)}
		}

		entry.PaymentStatus = status
		return tx.Model(&entry).Select("payment_status", "paid_amount").Updates(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("payment status updated",
		zap.Uint("sale_id", saleID),
		zap.String("status", status.String()),
		zap.String("actor_id", actor.ID))
	publish(s.events, EventSaleRecorded, &entry)
	return &entry, nil
}

// DeleteSale removes a sale record. With restoreStock the units go back on
// hand (the sale never happened); without it the deduction stands (the
// record was wrong but the goods left the warehouse). Either way the sale
// row is soft-deleted out of listings and a compensating adjustment entry
// referencing it preserves the audit trail, carrying the actual stock effect
// so the ledger still reconciles exactly.
func (s *SalesService) DeleteSale(saleID uint, restoreStock bool, actor models.Actor) error {
	if err := validateActor(actor); err != nil {
		return err
	}
	if err := s.EnsureDB(); err != nil {
		return err
	}

	var peek models.LedgerEntry
	if err := s.db.Where("type = ?", models.EntrySale).First(&peek, saleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &NotFoundError{Entity: "sale", ID: saleID}
		}
		return err
	}

	unlock := lockProduct(peek.ProductID)
	defer unlock()

	err := s.WithTransaction(func(tx *gorm.DB) error {
		var entry models.LedgerEntry
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("type = ?", models.EntrySale).
			First(&entry, saleID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Entity: "sale", ID: saleID}
			}
			return err
		}

		quantity := entry.SaleQuantity()
		comp := &models.LedgerEntry{
			Type:        models.EntryInventoryAdjustment,
			ProductID:   entry.ProductID,
			ProductName: entry.ProductName,
			ActorID:     actor.ID,
			ActorName:   actor.Name,
		}
		if restoreStock {
			if _, err := s.products.adjustQuantityTx(tx, entry.ProductID, quantity); err != nil {
				return err
			}
			comp.QuantityDelta = quantity
			comp.Notes = fmt.Sprintf("sale #%d removed, %d units restored", entry.ID, quantity)
		} else {
			comp.Notes = fmt.Sprintf("sale #%d removed, deduction stands", entry.ID)
		}
		if err := s.ledger.appendTx(tx, comp); err != nil {
			return err
		}

		return tx.Delete(&entry).Error
	})
	if err != nil {
		return err
	}

	logger.Log.Info("sale removed",
		zap.Uint("sale_id", saleID),
		zap.Bool("stock_restored", restoreStock))
	publish(s.events, EventSaleRemoved, map[string]interface{}{"sale_id": saleID, "stock_restored": restoreStock})
	return nil
}

// GetSale returns a single non-deleted sale entry.
func (s *SalesService) GetSale(saleID uint) (*models.LedgerEntry, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}
	var entry models.LedgerEntry
	if err := s.db.Where("type = ?", models.EntrySale).First(&entry, saleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Entity: "sale", ID: saleID}
		}
		return nil, err
	}
	return &entry, nil
}

// GetSales lists sales newest-first within the optional time range, voided
// sales excluded.
func (s *SalesService) GetSales(from, to time.Time) ([]models.LedgerEntry, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}
	q := s.db.Where("type = ?", models.EntrySale)
	if !from.IsZero() {
		q = q.Where("occurred_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("occurred_at <= ?", to)
	}
	var sales []models.LedgerEntry
	err := q.Order("occurred_at DESC, id DESC").Find(&sales).Error
	return sales, err
}
