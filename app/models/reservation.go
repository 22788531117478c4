package models

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus represents the state of a stock hold
type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "held"
	ReservationConverted ReservationStatus = "converted"
	ReservationReleased  ReservationStatus = "released"
)

func (s ReservationStatus) String() string {
	return string(s)
}

func (s *ReservationStatus) Scan(value interface{}) error {
	*s = ReservationStatus(value.(string))
	return nil
}

func (s ReservationStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Terminal reports whether the reservation can no longer transition.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationConverted || s == ReservationReleased
}

// Reservation holds stock against a pending customer order. The quantity is
// deducted from the product at hold time and either stays deducted
// (converted) or is restored (released); both outcomes are terminal.
type Reservation struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Code         string            `gorm:"size:36;uniqueIndex;not null" json:"code"`
	ProductID    uint              `gorm:"index" json:"product_id"`
	ProductName  string            `json:"product_name"`
	Quantity     int               `json:"quantity"` // always > 0
	UnitPrice    decimal.Decimal   `gorm:"type:decimal(12,2)" json:"unit_price"`
	Amount       decimal.Decimal   `gorm:"type:decimal(12,2)" json:"amount"`
	CustomerName string            `gorm:"not null" json:"customer_name"`
	Status       ReservationStatus `gorm:"index;not null" json:"status"`
	HoldEntryID  uint              `json:"hold_entry_id"`           // ledger entry written at hold time
	SaleEntryID  *uint             `json:"sale_entry_id,omitempty"` // set on convert
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	ConvertedAt  *time.Time        `json:"converted_at,omitempty"`
	ReleasedAt   *time.Time        `json:"released_at,omitempty"`
}
