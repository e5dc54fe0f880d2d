package models

import (
	"time"

	"gorm.io/gorm"
)

// DividendPayment records one net dividend credited to the portfolio during
// a simulation run. This is an append-only log, so no unique index.
type DividendPayment struct {
	gorm.Model
	Symbol string    `gorm:"not null"`
	Date   time.Time `gorm:"not null"`
	Amount float64   `gorm:"not null"`
}
