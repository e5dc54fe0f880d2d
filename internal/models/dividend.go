package models

import (
	"time"

	"gorm.io/gorm"
)

// Dividend is one per-share cash distribution, keyed by ex-date.
type Dividend struct {
	gorm.Model
	Symbol string    `gorm:"uniqueIndex:idx_div_symbol_date;not null"`
	Date   time.Time `gorm:"uniqueIndex:idx_div_symbol_date;not null"`
	Amount float64   `gorm:"not null"`
}
