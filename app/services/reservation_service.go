package services

import (
	"fmt"
	"strings"
	"time"

	"StockLedger/app/logger"
	"StockLedger/app/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReservationService runs the hold state machine: held -> converted or
// held -> released, both terminal. Stock is deducted at hold time; convert
// keeps the deduction and turns the hold into a sale, release restores it.
type ReservationService struct {
	*BaseService
	products *ProductService
	ledger   *LedgerService
	events   EventPublisher
}

// NewReservationService creates a new reservation service
func NewReservationService(products *ProductService, ledger *LedgerService) *ReservationService {
	return &ReservationService{
		BaseService: NewBaseService(),
		products:    products,
		ledger:      ledger,
	}
}

// SetEventPublisher attaches the live event feed
func (s *ReservationService) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// Hold reserves stock against a pending customer order. The quantity comes
// off the product immediately and a negative adjustment entry referencing
// the reservation is written in the same transaction. Fails with
// InsufficientStockError if stock is too low, leaving everything unchanged.
func (s *ReservationService) Hold(productID uint, quantity int, customerName string, actor models.Actor) (*models.Reservation, error) {
	if quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}
	if strings.TrimSpace(customerName) == "" {
		return nil, &ValidationError{Field: "customer_name", Reason: "required"}
	}
	if err := validateActor(actor); err != nil {
		return nil, err
	}

	unlock := lockProduct(productID)
	defer unlock()

	var reservation models.Reservation
	err := s.WithTransaction(func(tx *gorm.DB) error {
		product, err := s.products.adjustQuantityTx(tx, productID, -quantity)
		if err != nil {
			return err
		}

		// Unit price is the authoritative stored price at hold time, read
		// inside the locked transaction.
		reservation = models.Reservation{
			Code:         uuid.NewString(),
			ProductID:    product.ID,
			ProductName:  product.Name,
			Quantity:     quantity,
			UnitPrice:    product.Price,
			Amount:       product.Price.Mul(decimal.NewFromInt(int64(quantity))),
			CustomerName: customerName,
			Status:       models.ReservationHeld,
		}
		if err := tx.Create(&reservation).Error; err != nil {
			return err
		}

		holdEntry := &models.LedgerEntry{
			Type:          models.EntryInventoryAdjustment,
			ProductID:     product.ID,
			ProductName:   product.Name,
			QuantityDelta: -quantity,
			UnitPrice:     reservation.UnitPrice,
			ActorID:       actor.ID,
			ActorName:     actor.Name,
			Notes:         fmt.Sprintf("hold %s for %s", reservation.Code, customerName),
		}
		if err := s.ledger.appendTx(tx, holdEntry); err != nil {
			return err
		}

		reservation.HoldEntryID = holdEntry.ID
		return tx.Model(&reservation).Update("hold_entry_id", holdEntry.ID).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("reservation held",
		zap.Uint("reservation_id", reservation.ID),
		zap.Uint("product_id", productID),
		zap.Int("quantity", quantity))
	publish(s.events, EventReservationHeld, &reservation)
	return &reservation, nil
}

// Convert finalizes a held reservation as a sale. The stock was already
// deducted at hold time so the quantity is untouched; the hold's adjustment
// entry is reversed by a compensating entry and exactly one sale entry is
// written, so a converted reservation nets out to a single sale in the
// ledger instead of a hold-plus-sale double count.
func (s *ReservationService) Convert(reservationID uint, paymentMethod string, actor models.Actor) (*models.Reservation, error) {
	if strings.TrimSpace(paymentMethod) == "" {
		return nil, &ValidationError{Field: "payment_method", Reason: "required"}
	}
	if err := validateActor(actor); err != nil {
		return nil, err
	}

	var reservation models.Reservation
	err := s.WithTransaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reservation, reservationID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Entity: "reservation", ID: reservationID}
			}
			return err
		}
		if reservation.Status != models.ReservationHeld {
			return &InvalidStateError{
				Entity:   "reservation",
				ID:       reservationID,
				Current:  reservation.Status.String(),
				Expected: models.ReservationHeld.String(),
			}
		}

		// Reverse the hold's adjustment entry; the sale entry below carries
		// the deduction from here on.
		err := s.ledger.appendTx(tx, &models.LedgerEntry{
			Type:          models.EntryInventoryAdjustment,
			ProductID:     reservation.ProductID,
			ProductName:   reservation.ProductName,
			QuantityDelta: reservation.Quantity,
			ActorID:       actor.ID,
			ActorName:     actor.Name,
			Notes:         fmt.Sprintf("reversal of hold entry #%d (reservation %s converted)", reservation.HoldEntryID, reservation.Code),
		})
		if err != nil {
			return err
		}

		saleEntry := &models.LedgerEntry{
			Type:           models.EntrySale,
			ProductID:      reservation.ProductID,
			ProductName:    reservation.ProductName,
			QuantityDelta:  -reservation.Quantity,
			UnitPrice:      reservation.UnitPrice,
			Amount:         reservation.Amount,
			PaymentStatus:  models.PaymentPaid,
			PaymentMethod:  paymentMethod,
			OriginalAmount: reservation.Amount,
			PaidAmount:     reservation.Amount,
			ActorID:        actor.ID,
			ActorName:      actor.Name,
			Notes:          fmt.Sprintf("reservation %s for %s", reservation.Code, reservation.CustomerName),
		}
		if err := s.ledger.appendTx(tx, saleEntry); err != nil {
			return err
		}

		now := time.Now().UTC()
		reservation.Status = models.ReservationConverted
		reservation.ConvertedAt = &now
		reservation.SaleEntryID = &saleEntry.ID
		return tx.Save(&reservation).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("reservation converted",
		zap.Uint("reservation_id", reservation.ID),
		zap.String("payment_method", paymentMethod))
	publish(s.events, EventReservationConverted, &reservation)
	return &reservation, nil
}

// Release cancels a held reservation, restoring the stock and writing the
// compensating positive entry in the same transaction.
func (s *ReservationService) Release(reservationID uint, actor models.Actor) (*models.Reservation, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}

	// Read outside the lock only to learn the product id; the state check
	// repeats under the row lock.
	var peek models.Reservation
	if err := s.db.First(&peek, reservationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Entity: "reservation", ID: reservationID}
		}
		return nil, err
	}

	unlock := lockProduct(peek.ProductID)
	defer unlock()

	var reservation models.Reservation
	err := s.WithTransaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reservation, reservationID).Error; err != nil {
			return err
		}
		if reservation.Status != models.ReservationHeld {
			return &InvalidStateError{
				Entity:   "reservation",
				ID:       reservationID,
				Current:  reservation.Status.String(),
				Expected: models.ReservationHeld.String(),
			}
		}

		if _, err := s.products.adjustQuantityTx(tx, reservation.ProductID, reservation.Quantity); err != nil {
			return err
		}
		err := s.ledger.appendTx(tx, &models.LedgerEntry{
			Type:          models.EntryInventoryAdjustment,
			ProductID:     reservation.ProductID,
			ProductName:   reservation.ProductName,
			QuantityDelta: reservation.Quantity,
			ActorID:       actor.ID,
			ActorName:     actor.Name,
			Notes:         fmt.Sprintf("reversal of hold entry #%d (reservation %s released)", reservation.HoldEntryID, reservation.Code),
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		reservation.Status = models.ReservationReleased
		reservation.ReleasedAt = &now
		return tx.Save(&reservation).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("reservation released", zap.Uint("reservation_id", reservation.ID))
	publish(s.events, EventReservationReleased, &reservation)
	return &reservation, nil
}

// GetReservation returns a single reservation by id.
func (s *ReservationService) GetReservation(id uint) (*models.Reservation, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}
	var reservation models.Reservation
	if err := s.db.First(&reservation, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Entity: "reservation", ID: id}
		}
		return nil, err
	}
	return &reservation, nil
}

// GetReservations lists reservations newest-first, optionally by status.
func (s *ReservationService) GetReservations(status models.ReservationStatus) ([]models.Reservation, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}
	q := s.db.Order("created_at DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var reservations []models.Reservation
	err := q.Find(&reservations).Error
	return reservations, err
}
