package models

import "time"

type Customer struct {
	ID         uint   `gorm:"primaryKey"`
	BusinessID uint   `gorm:"not null;uniqueIndex:idx_customers_business_name;uniqueIndex:idx_customers_business_phone"`
	UserID     uint   `gorm:"index;not null"`
	Name       string `gorm:"size:150;not null;uniqueIndex:idx_customers_business_name"`
	PersonName string `gorm:"size:150;not null"`
	Phone      string `gorm:"size:20;not null;uniqueIndex:idx_customers_business_phone"`
	Address    string `gorm:"size:255"`
	IsActive   bool   `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
