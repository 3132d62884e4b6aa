package models

import "time"

type SubscriptionType string

const (
	SubscriptionMonthly SubscriptionType = "monthly"
	SubscriptionYearly  SubscriptionType = "yearly"
)

// Business: kiracı (tenant). Diğer tüm kayıtlar business_id ile bölümlenir.
type Business struct {
	ID               uint             `gorm:"primaryKey"`
	Name             string           `gorm:"size:150;not null"`
	Owner            string           `gorm:"size:150;not null"`
	Phone            string           `gorm:"size:30;not null;uniqueIndex"`
	RegistrationDate time.Time        `gorm:"not null"`
	Type             SubscriptionType `gorm:"size:20;not null"`
	Price            float64          `gorm:"not null"`
	UserID           uint             `gorm:"index"` // sahip kullanıcı
	IsActive         bool             `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
