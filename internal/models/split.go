package models

import (
	"time"

	"gorm.io/gorm"
)

// Split is one share split, keyed by effective date. Ratio is the
// multiplicative factor applied to holdings (2.0 for a 2-for-1 split).
type Split struct {
	gorm.Model
	Symbol string    `gorm:"uniqueIndex:idx_split_symbol_date;not null"`
	Date   time.Time `gorm:"uniqueIndex:idx_split_symbol_date;not null"`
	Ratio  float64   `gorm:"not null"`
}
