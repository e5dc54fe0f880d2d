package models

import (
	"time"

	"gorm.io/gorm"
)

// PriceBar is one daily closing price for a symbol. The (symbol, date)
// unique index lets merges upsert without ever duplicating a day.
type PriceBar struct {
	gorm.Model
	Symbol string    `gorm:"uniqueIndex:idx_bar_symbol_date;not null"`
	Date   time.Time `gorm:"uniqueIndex:idx_bar_symbol_date;not null"`
	Close  float64   `gorm:"not null"`
}
