package services

import (
	"strings"
	"sync"

	"StockLedger/app/logger"
	"StockLedger/app/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// reorderCycleID is the primary key of the single active-cycle row.
const reorderCycleID = 1

// ReorderService builds a candidate purchase list against a per-cycle
// spending cap and snapshots finished lists for history. It never mutates
// product quantity. Draft mutations serialize on one mutex: a single
// operator runs a cycle, correctness matters more than parallelism here.
type ReorderService struct {
	*BaseService
	events EventPublisher

	mu   sync.Mutex
	undo *deletedSnapshot // single-slot buffer; overwritten by the next delete
}

// deletedSnapshot keeps one deleted snapshot's full content so a single
// RestoreSnapshot call can recreate it verbatim.
type deletedSnapshot struct {
	snapshot models.ReorderSnapshot
	items    []models.ReorderItem
}

// NewReorderService creates a new reorder service
func NewReorderService() *ReorderService {
	return &ReorderService{BaseService: NewBaseService()}
}

// SetEventPublisher attaches the live event feed
func (s *ReorderService) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// cycleTx loads (or seeds) the single cycle row inside a transaction.
func (s *ReorderService) cycleTx(tx *gorm.DB) (*models.ReorderCycle, error) {
	var cycle models.ReorderCycle
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cycle, reorderCycleID).Error
	if err == gorm.ErrRecordNotFound {
		cycle = models.ReorderCycle{ID: reorderCycleID, MaxTotalAmount: decimal.Zero}
		if err := tx.Create(&cycle).Error; err != nil {
			return nil, err
		}
		return &cycle, nil
	}
	if err != nil {
		return nil, err
	}
	return &cycle, nil
}

// draftItemsTx returns the active draft lines (no snapshot parent).
func (s *ReorderService) draftItemsTx(tx *gorm.DB) ([]models.ReorderItem, error) {
	var items []models.ReorderItem
	err := tx.Where("snapshot_id IS NULL").Order("id").Find(&items).Error
	return items, err
}

func sumSubtotals(items []models.ReorderItem, excludeID uint) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if excludeID != 0 && it.ID == excludeID {
			continue
		}
		total = total.Add(it.Subtotal)
	}
	return total
}

// GetCap returns the active cycle's spending cap.
func (s *ReorderService) GetCap() (decimal.Decimal, error) {
	if err := s.EnsureDB(); err != nil {
		return decimal.Zero, err
	}
	var amount decimal.Decimal
	err := s.WithTransaction(func(tx *gorm.DB) error {
		cycle, err := s.cycleTx(tx)
		if err != nil {
			return err
		}
		amount = cycle.MaxTotalAmount
		return nil
	})
	return amount, err
}

// SetCap replaces the active spending cap. Zero means drafting is
// disallowed, which is also the state after saving a snapshot.
func (s *ReorderService) SetCap(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &ValidationError{Field: "cap", Reason: "must not be negative"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.WithTransaction(func(tx *gorm.DB) error {
		cycle, err := s.cycleTx(tx)
		if err != nil {
			return err
		}
		cycle.MaxTotalAmount = amount
		return tx.Save(cycle).Error
	})
}

// AddItem appends a line to the draft. The subtotal comes from the product's
// stored distributor price read inside the transaction. The insertion is
// rejected atomically when it would push the draft total over the cap, with
// the overage reported.
func (s *ReorderService) AddItem(productID uint, quantity int) (*models.ReorderItem, error) {
	if quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var item models.ReorderItem
	err := s.WithTransaction(func(tx *gorm.DB) error {
		cycle, err := s.cycleTx(tx)
		if err != nil {
			return err
		}
		if cycle.MaxTotalAmount.IsZero() {
			return ErrCapNotSet
		}

		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Entity: "product", ID: productID}
			}
			return err
		}
		if !product.DistributorPrice.IsPositive() {
			return &ValidationError{Field: "distributor_price", Reason: "not set on product"}
		}

		subtotal := product.DistributorPrice.Mul(decimal.NewFromInt(int64(quantity)))
		items, err := s.draftItemsTx(tx)
		if err != nil {
			return err
		}
		attempted := sumSubtotals(items, 0).Add(subtotal)
		if attempted.GreaterThan(cycle.MaxTotalAmount) {
			return &BudgetExceededError{
				Cap:       cycle.MaxTotalAmount,
				Attempted: attempted,
				Overage:   attempted.Sub(cycle.MaxTotalAmount),
			}
		}

		item = models.ReorderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    quantity,
			UnitPrice:   product.DistributorPrice,
			Subtotal:    subtotal,
		}
		return tx.Create(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// EditItem changes a draft line's quantity, re-validating the cap against
// the draft total excluding the line being edited. Rejected edits leave the
// draft unchanged.
func (s *ReorderService) EditItem(lineID uint, newQuantity int) (*models.ReorderItem, error) {
	if newQuantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var item models.ReorderItem
	err := s.WithTransaction(func(tx *gorm.DB) error {
		cycle, err := s.cycleTx(tx)
		if err != nil {
			return err
		}

		if err := tx.Where("snapshot_id IS NULL").First(&item, lineID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Entity: "reorder line", ID: lineID}
			}
			return err
		}

		subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(newQuantity)))
		items, err := s.draftItemsTx(tx)
		if err != nil {
			return err
		}
		attempted := sumSubtotals(items, item.ID).Add(subtotal)
		if attempted.GreaterThan(cycle.MaxTotalAmount) {
			return &BudgetExceededError{
				Cap:       cycle.MaxTotalAmount,
				Attempted: attempted,
				Overage:   attempted.Sub(cycle.MaxTotalAmount),
			}
		}

		item.Quantity = newQuantity
		item.Subtotal = subtotal
		return tx.Save(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveItem deletes a draft line.
func (s *ReorderService) RemoveItem(lineID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.WithTransaction(func(tx *gorm.DB) error {
		res := tx.Where("snapshot_id IS NULL").Delete(&models.ReorderItem{}, lineID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Entity: "reorder line", ID: lineID}
		}
		return nil
	})
}

// ClearDraft discards every line of the active draft.
func (s *ReorderService) ClearDraft() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.WithTransaction(func(tx *gorm.DB) error {
		return tx.Where("snapshot_id IS NULL").Delete(&models.ReorderItem{}).Error
	})
}

// GetDraft returns the active draft lines and their running total.
func (s *ReorderService) GetDraft() ([]models.ReorderItem, decimal.Decimal, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, decimal.Zero, err
	}
	var items []models.ReorderItem
	if err := s.db.Where("snapshot_id IS NULL").Order("id").Find(&items).Error; err != nil {
		return nil, decimal.Zero, err
	}
	return items, sumSubtotals(items, 0), nil
}

// SaveSnapshot finalizes the cycle: the draft becomes an immutable named
// snapshot, the draft is cleared and the cap reset to zero. The reset is
// policy, not an incidental side effect — the operator must set a fresh cap
// before the next cycle's drafting.
func (s *ReorderService) SaveSnapshot(name string) (*models.ReorderSnapshot, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var snapshot models.ReorderSnapshot
	err := s.WithTransaction(func(tx *gorm.DB) error {
		cycle, err := s.cycleTx(tx)
		if err != nil {
			return err
		}
		items, err := s.draftItemsTx(tx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return &ValidationError{Field: "draft", Reason: "must not be empty"}
		}

		snapshot = models.ReorderSnapshot{
			Name:          name,
			TotalAmount:   sumSubtotals(items, 0),
			CapAtSaveTime: cycle.MaxTotalAmount,
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return err
		}

		// Re-parent the draft lines under the snapshot; this both freezes
		// them and empties the draft.
		if err := tx.Model(&models.ReorderItem{}).
			Where("snapshot_id IS NULL").
			Update("snapshot_id", snapshot.ID).Error; err != nil {
			return err
		}

		cycle.MaxTotalAmount = decimal.Zero
		return tx.Save(cycle).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("reorder snapshot saved",
		zap.Uint("snapshot_id", snapshot.ID),
		zap.String("name", snapshot.Name),
		zap.String("total", snapshot.TotalAmount.StringFixed(2)))
	publish(s.events, EventSnapshotSaved, &snapshot)
	return &snapshot, nil
}

// GetSnapshots lists saved snapshots newest-first with their items.
func (s *ReorderService) GetSnapshots() ([]models.ReorderSnapshot, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}
	var snapshots []models.ReorderSnapshot
	err := s.db.Preload("Items").Order("created_at DESC, id DESC").Find(&snapshots).Error
	return snapshots, err
}

// GetSnapshot returns one snapshot with its items.
func (s *ReorderService) GetSnapshot(id uint) (*models.ReorderSnapshot, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}
	var snapshot models.ReorderSnapshot
	if err := s.db.Preload("Items").First(&snapshot, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Entity: "snapshot", ID: id}
		}
		return nil, err
	}
	return &snapshot, nil
}

// MergeItemsFromSnapshot copies selected items out of a saved snapshot.
// With intoDraft they join the active draft and are validated against the
// current cap; otherwise they are duplicated back into the same snapshot,
// validated against that snapshot's own cap at save time.
func (s *ReorderService) MergeItemsFromSnapshot(snapshotID uint, itemIDs []uint, intoDraft bool) error {
	if len(itemIDs) == 0 {
		return &ValidationError{Field: "item_ids", Reason: "required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.WithTransaction(func(tx *gorm.DB) error {
		var snapshot models.ReorderSnapshot
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&snapshot, snapshotID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Entity: "snapshot", ID: snapshotID}
			}
			return err
		}

		var selected []models.ReorderItem
		if err := tx.Where("snapshot_id = ? AND id IN ?", snapshotID, itemIDs).Find(&selected).Error; err != nil {
			return err
		}
		if len(selected) != len(itemIDs) {
			return &NotFoundError{Entity: "snapshot item", ID: snapshotID}
		}

		addition := sumSubtotals(selected, 0)

		if intoDraft {
			cycle, err := s.cycleTx(tx)
			if err != nil {
				return err
			}
			if cycle.MaxTotalAmount.IsZero() {
				return ErrCapNotSet
			}
			items, err := s.draftItemsTx(tx)
			if err != nil {
				return err
			}
			attempted := sumSubtotals(items, 0).Add(addition)
			if attempted.GreaterThan(cycle.MaxTotalAmount) {
				return &BudgetExceededError{
					Cap:       cycle.MaxTotalAmount,
					Attempted: attempted,
					Overage:   attempted.Sub(cycle.MaxTotalAmount),
				}
			}
			for _, src := range selected {
				dup := models.ReorderItem{
					ProductID:   src.ProductID,
					ProductName: src.ProductName,
					Quantity:    src.Quantity,
					UnitPrice:   src.UnitPrice,
					Subtotal:    src.Subtotal,
				}
				if err := tx.Create(&dup).Error; err != nil {
					return err
				}
			}
			return nil
		}

		// Merging back into the snapshot re-validates its original cap, not
		// the active draft cap.
		attempted := snapshot.TotalAmount.Add(addition)
		if attempted.GreaterThan(snapshot.CapAtSaveTime) {
			return &BudgetExceededError{
				Cap:       snapshot.CapAtSaveTime,
				Attempted: attempted,
				Overage:   attempted.Sub(snapshot.CapAtSaveTime),
			}
		}
		for _, src := range selected {
			dup := models.ReorderItem{
				SnapshotID:  &snapshot.ID,
				ProductID:   src.ProductID,
				ProductName: src.ProductName,
				Quantity:    src.Quantity,
				UnitPrice:   src.UnitPrice,
				Subtotal:    src.Subtotal,
			}
			if err := tx.Create(&dup).Error; err != nil {
				return err
			}
		}
		snapshot.TotalAmount = attempted
		return tx.Save(&snapshot).Error
	})
}

// DeleteSnapshot removes a snapshot, keeping its full content in the
// single-slot undo buffer. Deleting another snapshot before restoring
// discards the previous buffer.
func (s *ReorderService) DeleteSnapshot(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf deletedSnapshot
	err := s.WithTransaction(func(tx *gorm.DB) error {
		if err := tx.First(&buf.snapshot, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Entity: "snapshot", ID: id}
			}
			return err
		}
		if err := tx.Where("snapshot_id = ?", id).Order("id").Find(&buf.items).Error; err != nil {
			return err
		}
		if err := tx.Where("snapshot_id = ?", id).Delete(&models.ReorderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ReorderSnapshot{}, id).Error
	})
	if err != nil {
		return err
	}

	s.undo = &buf
	return nil
}

// RestoreSnapshot recreates the most recently deleted snapshot verbatim,
// original ids included, and empties the undo buffer.
func (s *ReorderService) RestoreSnapshot() (*models.ReorderSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.undo == nil {
		return nil, &NotFoundError{Entity: "deleted snapshot", ID: 0}
	}

	buf := s.undo
	err := s.WithTransaction(func(tx *gorm.DB) error {
		if err := tx.Create(&buf.snapshot).Error; err != nil {
			return err
		}
		for i := range buf.items {
			if err := tx.Create(&buf.items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.undo = nil
	restored := buf.snapshot
	restored.Items = buf.items
	return &restored, nil
}
