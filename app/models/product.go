package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the durable record of one sellable item. Quantity is the single
// source of truth for units on hand and not committed to an open reservation;
// it is mutated only through ledger-recording operations.
type Product struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Name             string          `gorm:"not null" json:"name"`
	Category         string          `gorm:"index" json:"category"`
	Price            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	DistributorPrice decimal.Decimal `gorm:"type:decimal(12,2)" json:"distributor_price"`
	Quantity         int             `json:"quantity"` // never negative
	ImageURL         string          `gorm:"type:text" json:"image_url"` // opaque, hosted externally
	IsActive         bool            `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

// ProductPatch carries the fields UpdateProduct may change. Nil pointers mean
// "leave as is". Quantity is deliberately absent: stock moves only through
// AdjustQuantity so every unit change lands in the ledger.
type ProductPatch struct {
	Name             *string          `json:"name,omitempty"`
	Category         *string          `json:"category,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	DistributorPrice *decimal.Decimal `json:"distributor_price,omitempty"`
	ImageURL         *string          `json:"image_url,omitempty"`
}

// Actor identifies the user performing a mutation. Identity is established by
// an external auth collaborator; the engine only records it.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
