package models

import "time"

// Article: stok miktarı burada tutulmaz, ArticleStock hareketlerinden ve satışlardan hesaplanır.
type Article struct {
	ID            uint    `gorm:"primaryKey"`
	BusinessID    uint    `gorm:"not null;uniqueIndex:idx_articles_business_no"`
	UserID        uint    `gorm:"index;not null"`
	ArticleNo     string  `gorm:"size:100;not null;uniqueIndex:idx_articles_business_no"`
	Season        string  `gorm:"size:50;not null"`
	Size          string  `gorm:"size:50;not null"`
	Category      string  `gorm:"size:100;not null"`
	Type          string  `gorm:"size:100"`
	PurchasePrice float64 `gorm:"not null;default:0"`
	SellingPrice  float64 `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type MovementType string

const (
	MovementIn  MovementType = "in"
	MovementOut MovementType = "out"
)

// ArticleStock: stok hareketi. Sadece eklenir, güncellenmez/silinmez.
// Quantity işaretlidir; Type bilgi amaçlıdır.
type ArticleStock struct {
	ID         uint         `gorm:"primaryKey"`
	ArticleID  uint         `gorm:"index;not null"`
	BusinessID uint         `gorm:"index;not null"`
	UserID     uint         `gorm:"index;not null"`
	Quantity   int          `gorm:"not null"`
	Type       MovementType `gorm:"size:10;not null;default:in"`
	Note       string       `gorm:"size:255"`
	CreatedAt  time.Time    `gorm:"index"`
}

func MovementTypeFor(quantity int) MovementType {
	if quantity < 0 {
		return MovementOut
	}
	return MovementIn
}
