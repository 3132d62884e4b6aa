package models

import "time"

type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPending PaymentStatus = "pending"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusUnpaid, PaymentStatusPending:
		return true
	}
	return false
}

// Subscription: bir işletmenin birden fazla aboneliği olabilir; geçerli olan bitiş tarihi en geç olandır.
type Subscription struct {
	ID            uint `gorm:"primaryKey"`
	BusinessID    uint `gorm:"index;not null"`
	Business      *Business
	Type          SubscriptionType `gorm:"size:20;not null"`
	Price         float64          `gorm:"not null"`
	StartDate     time.Time        `gorm:"not null"`
	EndDate       time.Time        `gorm:"not null;index"`
	PaymentStatus PaymentStatus    `gorm:"size:20;not null;default:unpaid"`
	PaymentDate   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Period: abonelik tipine göre süre.
func (t SubscriptionType) Period() time.Duration {
	if t == SubscriptionYearly {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

func (t SubscriptionType) Valid() bool {
	return t == SubscriptionMonthly || t == SubscriptionYearly
}
