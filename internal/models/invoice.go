package models

import "time"

type Invoice struct {
	ID            uint      `gorm:"primaryKey"`
	BusinessID    uint      `gorm:"not null;uniqueIndex:idx_invoices_business_number"`
	UserID        uint      `gorm:"index;not null"`
	InvoiceNumber string    `gorm:"size:32;not null;uniqueIndex:idx_invoices_business_number"`
	InvoiceDate   time.Time `gorm:"not null"`
	CustomerID    *uint     `gorm:"index"` // nil => walk-in satış
	Customer      *Customer
	IsWalkIn      bool      `gorm:"not null;default:false"`
	Discount      float64   `gorm:"not null;default:0"` // yüzde (0-100)
	GrossAmount   float64   `gorm:"not null;default:0"`
	NetAmount     float64   `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// InvoiceItem: oluşturulduktan sonra değişmez. Fiyat satış anındaki değerdir.
type InvoiceItem struct {
	ID                   uint `gorm:"primaryKey"`
	InvoiceID            uint `gorm:"index;not null"`
	ArticleID            uint `gorm:"index;not null"`
	Article              *Article
	Quantity             int     `gorm:"not null"`
	SellingPriceSnapshot float64 `gorm:"not null;default:0"`
}

// InvoiceCounter: tenant + yıl bazında son verilen fatura sırası.
type InvoiceCounter struct {
	BusinessID uint `gorm:"primaryKey;autoIncrement:false"`
	Year       int  `gorm:"primaryKey;autoIncrement:false"` // iki haneli yıl (25, 26 ...)
	LastSerial int  `gorm:"not null;default:0"`
	UpdatedAt  time.Time
}
