package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReorderCycle is the single-row table holding the operator-set spending cap
// for the current drafting cycle. A zero cap means drafting is disallowed;
// saving a snapshot resets the cap to zero so the next cycle starts with an
// explicit SetCap.
type ReorderCycle struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	MaxTotalAmount decimal.Decimal `gorm:"type:decimal(12,2)" json:"max_total_amount"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ReorderItem is one line of a purchase plan. Lines with a nil SnapshotID
// form the active draft; saving a snapshot re-parents them under it.
type ReorderItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	SnapshotID  *uint           `gorm:"index" json:"snapshot_id,omitempty"`
	ProductID   uint            `gorm:"index" json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_price"` // distributor price at add time
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2)" json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ReorderSnapshot is an immutable, named copy of a finalized draft, with the
// cap that was in force when it was saved.
type ReorderSnapshot struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"not null" json:"name"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_amount"`
	CapAtSaveTime decimal.Decimal `gorm:"type:decimal(12,2)" json:"cap_at_save_time"`
	Items         []ReorderItem   `gorm:"foreignKey:SnapshotID" json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
}
