package services

import (
	"strings"
	"time"

	"StockLedger/app/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerService owns the append-only audit trail. Append is the only
// mutation; corrections happen by appending a compensating entry that
// references the original in its notes. Voided sales are soft-deleted so
// they drop out of listings but stay queryable unscoped.
type LedgerService struct {
	*BaseService
}

// NewLedgerService creates a new ledger service
func NewLedgerService() *LedgerService {
	return &LedgerService{BaseService: NewBaseService()}
}

// LedgerFilter narrows a ledger query. Zero values mean "no filter".
type LedgerFilter struct {
	ProductID uint
	Type      models.LedgerEntryType
	From      time.Time
	To        time.Time
	Search    string // matches product name or notes
}

// Append validates and writes a new ledger entry, returning its assigned id.
func (s *LedgerService) Append(entry *models.LedgerEntry) (uint, error) {
	if err := s.EnsureDB(); err != nil {
		return 0, err
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.appendTx(tx, entry)
	})
	if err != nil {
		return 0, err
	}
	return entry.ID, nil
}

// appendTx writes an entry inside the caller's transaction. Every operation
// that changes a product quantity appends its matching entry through here so
// the two commit together or not at all.
func (s *LedgerService) appendTx(tx *gorm.DB, entry *models.LedgerEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if entry.Reference == "" {
		entry.Reference = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	return tx.Create(entry).Error
}

func validateEntry(entry *models.LedgerEntry) error {
	if entry == nil {
		return &ValidationError{Field: "entry", Reason: "missing"}
	}
	valid := false
	for _, t := range models.ValidEntryTypes {
		if entry.Type == t {
			valid = true
			break
		}
	}
	if !valid {
		return &ValidationError{Field: "type", Reason: "unknown entry type " + string(entry.Type)}
	}
	if entry.ProductID == 0 {
		return &ValidationError{Field: "product_id", Reason: "required"}
	}
	if strings.TrimSpace(entry.ActorID) == "" {
		return &ValidationError{Field: "actor_id", Reason: "required"}
	}
	return nil
}

// Query returns matching entries ordered newest-first.
func (s *LedgerService) Query(filter LedgerFilter) ([]models.LedgerEntry, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}

	q := s.db.Model(&models.LedgerEntry{})
	if filter.ProductID != 0 {
		q = q.Where("product_id = ?", filter.ProductID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if !filter.From.IsZero() {
		q = q.Where("occurred_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("occurred_at <= ?", filter.To)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("product_name LIKE ? OR notes LIKE ?", like, like)
	}

	var entries []models.LedgerEntry
	err := q.Order("occurred_at DESC, id DESC").Find(&entries).Error
	return entries, err
}

// GetEntry returns a single ledger entry by id.
func (s *LedgerService) GetEntry(id uint) (*models.LedgerEntry, error) {
	if err := s.EnsureDB(); err != nil {
		return nil, err
	}
	var entry models.LedgerEntry
	if err := s.db.First(&entry, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Entity: "ledger entry", ID: id}
		}
		return nil, err
	}
	return &entry, nil
}

// NetQuantityDelta sums every delta ever recorded for a product, voided
// sales included. For any product the sum equals its current quantity minus
// its initial quantity; reports use this to reconcile the trail against the
// store.
func (s *LedgerService) NetQuantityDelta(productID uint) (int, error) {
	if err := s.EnsureDB(); err != nil {
		return 0, err
	}
	var net *int
	err := s.db.Unscoped().Model(&models.LedgerEntry{}).
		Where("product_id = ?", productID).
		Select("SUM(quantity_delta)").
		Scan(&net).Error
	if err != nil {
		return 0, err
	}
	if net == nil {
		return 0, nil
	}
	return *net, nil
}
