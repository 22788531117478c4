package models

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerEntryType classifies inventory-affecting events
type LedgerEntryType string

const (
	EntrySale                LedgerEntryType = "sale"
	EntryProductAdded        LedgerEntryType = "product_added"
	EntryProductUpdated      LedgerEntryType = "product_updated"
	EntryProductDeleted      LedgerEntryType = "product_deleted"
	EntryInventoryAdjustment LedgerEntryType = "inventory_adjustment"
)

// ValidEntryTypes lists every accepted ledger entry type
var ValidEntryTypes = []LedgerEntryType{
	EntrySale,
	EntryProductAdded,
	EntryProductUpdated,
	EntryProductDeleted,
	EntryInventoryAdjustment,
}

func (t LedgerEntryType) String() string {
	return string(t)
}

func (t *LedgerEntryType) Scan(value interface{}) error {
	*t = LedgerEntryType(value.(string))
	return nil
}

func (t LedgerEntryType) Value() (driver.Value, error) {
	return string(t), nil
}

// PaymentStatus tracks how much of a sale has been collected
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPartial PaymentStatus = "partial"
	PaymentUnpaid  PaymentStatus = "unpaid"
)

func (s PaymentStatus) String() string {
	return string(s)
}

func (s *PaymentStatus) Scan(value interface{}) error {
	if value == nil {
		*s = ""
		return nil
	}
	*s = PaymentStatus(value.(string))
	return nil
}

func (s PaymentStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// LedgerEntry is one immutable record in the audit trail. Entries are only
// ever appended; corrections are new compensating entries whose notes
// reference the original. Sale entries additionally carry payment fields,
// which are the single sanctioned post-write mutation — payment edits never
// touch product quantity.
//
// QuantityDelta is positive for stock added back, negative for stock removed.
// Reference is assigned inside the recording transaction so a crash-recovery
// retry of the same operation stays idempotent.
type LedgerEntry struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Reference     string          `gorm:"size:36;uniqueIndex;not null" json:"reference"`
	Type          LedgerEntryType `gorm:"index;not null" json:"type"`
	ProductID     uint            `gorm:"index" json:"product_id"`
	ProductName   string          `json:"product_name"` // snapshot; survives product deletion
	QuantityDelta int             `json:"quantity_delta"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_price"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`

	// Sale-only payment tracking
	PaymentStatus  PaymentStatus   `gorm:"index" json:"payment_status,omitempty"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	OriginalAmount decimal.Decimal `gorm:"type:decimal(12,2)" json:"original_amount"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(12,2)" json:"paid_amount"`

	ActorID    string         `json:"actor_id"`
	ActorName  string         `json:"actor_name"`
	Notes      string         `gorm:"type:text" json:"notes"`
	OccurredAt time.Time      `gorm:"index" json:"occurred_at"`
	CreatedAt  time.Time      `json:"created_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"` // voided sales only; rows stay queryable unscoped
}

// SaleQuantity returns the units sold for a sale entry (the positive
// counterpart of its negative delta).
func (e *LedgerEntry) SaleQuantity() int {
	return -e.QuantityDelta
}
