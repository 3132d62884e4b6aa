package models

import "time"

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
	PaymentSlip   PaymentMethod = "slip"
	PaymentCheque PaymentMethod = "cheque"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentOnline, PaymentSlip, PaymentCheque:
		return true
	}
	return false
}

type Payment struct {
	ID         uint `gorm:"primaryKey"`
	BusinessID uint `gorm:"index;not null"`
	UserID     uint `gorm:"index;not null"`
	User       *User
	CustomerID uint `gorm:"index;not null"`
	Customer   *Customer
	Method     PaymentMethod `gorm:"size:20;not null"`
	Amount     float64       `gorm:"not null"`
	Remarks    string        `gorm:"size:255;default:'-'"`
	Date       time.Time     `gorm:"index;not null"`

	// online
	Bank          string `gorm:"size:100"`
	TransactionID string `gorm:"size:100"`

	// slip
	SlipNo    string `gorm:"size:100"`
	SlipDate  *time.Time
	ClearDate *time.Time

	// cheque
	ChequeNo   string `gorm:"size:100"`
	ChequeDate *time.Time
	ChequeBank string `gorm:"size:100"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
