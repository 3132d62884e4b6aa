// Package ledger derives stock levels and customer balances from the append-only
// movement, invoice and payment records. Nothing here is cached: every figure is
// recomputed from history on read.
package ledger

import (
	"retail-backend/internal/models"

	"gorm.io/gorm"
)

type sumRow struct {
	ArticleID uint
	Total     int
}

// CurrentStock = Σ hareket miktarı − Σ faturalarda satılan miktar. Negatif olabilir.
func CurrentStock(db *gorm.DB, businessID, articleID uint) (int, error) {
	levels, err := StockLevels(db, businessID, []uint{articleID})
	if err != nil {
		return 0, err
	}
	return levels[articleID], nil
}

// StockLevels: birden fazla artikel için aynı hesap, iki toplu sorgu ile.
// Hiç hareketi ve satışı olmayan artikeller için 0 döner.
func StockLevels(db *gorm.DB, businessID uint, articleIDs []uint) (map[uint]int, error) {
	levels := make(map[uint]int, len(articleIDs))
	if len(articleIDs) == 0 {
		return levels, nil
	}
	for _, id := range articleIDs {
		levels[id] = 0
	}

	var added []sumRow
	if err := db.Model(&models.ArticleStock{}).
		Select("article_id, COALESCE(SUM(quantity), 0) AS total").
		Where("business_id = ? AND article_id IN ?", businessID, articleIDs).
		Group("article_id").
		Scan(&added).Error; err != nil {
		return nil, err
	}

	var sold []sumRow
	if err := db.Table("invoice_items").
		Select("invoice_items.article_id AS article_id, COALESCE(SUM(invoice_items.quantity), 0) AS total").
		Joins("JOIN invoices ON invoices.id = invoice_items.invoice_id").
		Where("invoices.business_id = ? AND invoice_items.article_id IN ?", businessID, articleIDs).
		Group("invoice_items.article_id").
		Scan(&sold).Error; err != nil {
		return nil, err
	}

	for _, r := range added {
		levels[r.ArticleID] += r.Total
	}
	for _, r := range sold {
		levels[r.ArticleID] -= r.Total
	}
	return levels, nil
}
