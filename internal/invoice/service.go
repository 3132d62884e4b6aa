// Package invoice issues invoices: stock check under per-article row locks,
// selling price snapshot, per-tenant yearly numbering and the insert itself,
// all inside one transaction.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"retail-backend/internal/apperror"
	"retail-backend/internal/audit"
	"retail-backend/internal/database"
	"retail-backend/internal/ledger"
	"retail-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxNumberRetries = 3

var (
	errNoItems        = apperror.Validation("Invoice must contain items")
	errInvalidItem    = apperror.Validation("Each item must include articleId and a positive quantity")
	errInvalidArticle = apperror.Validation("Invalid article ID provided")
	errDiscount       = apperror.Validation("Discount must be between 0 and 100")
	errDuplicate      = apperror.New(apperror.ErrValidation, apperror.CodeRetry, "Duplicate invoice number. Please try again.")
)

type ItemInput struct {
	ArticleID uint
	Quantity  int
}

type CreateInput struct {
	BusinessID  uint
	UserID      uint
	UserName    string
	CustomerID  *uint
	Items       []ItemInput
	Discount    float64
	GrossAmount *float64
	NetAmount   *float64
	Date        *time.Time
}

type ListFilter struct {
	CustomerID *uint
	WalkIn     *bool
	From       *time.Time
	To         *time.Time
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// WithClock: testlerde yıl geçişini denemek için.
func (s *Service) WithClock(now func() time.Time) *Service {
	return &Service{db: s.db, now: now}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Invoice, error) {
	if len(in.Items) == 0 {
		return nil, errNoItems
	}
	for _, it := range in.Items {
		if it.ArticleID == 0 || it.Quantity <= 0 {
			return nil, errInvalidItem
		}
	}
	if in.Discount < 0 || in.Discount > 100 {
		return nil, errDiscount
	}
	if in.GrossAmount != nil && *in.GrossAmount < 0 {
		return nil, apperror.Validation("grossAmount cannot be negative")
	}
	if in.NetAmount != nil && *in.NetAmount < 0 {
		return nil, apperror.Validation("netAmount cannot be negative")
	}

	db := s.db.WithContext(ctx)
	var invoiceID uint
	var lastErr error
	for attempt := 0; attempt < maxNumberRetries; attempt++ {
		lastErr = db.Transaction(func(tx *gorm.DB) error {
			id, err := s.create(tx, in)
			invoiceID = id
			return err
		})
		if lastErr == nil {
			break
		}
		if !database.IsUniqueViolation(lastErr) {
			return nil, lastErr
		}
		log.Printf("[WARN] invoice number collision for business %d (attempt %d)", in.BusinessID, attempt+1)
	}
	if lastErr != nil {
		return nil, errDuplicate
	}

	return s.Get(ctx, in.BusinessID, invoiceID)
}

func (s *Service) create(tx *gorm.DB, in CreateInput) (uint, error) {
	now := s.now().UTC()

	if in.CustomerID != nil {
		var count int64
		if err := tx.Model(&models.Customer{}).
			Where("id = ? AND business_id = ?", *in.CustomerID, in.BusinessID).
			Count(&count).Error; err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, apperror.NotFound("Customer not found")
		}
	}

	// Aynı artikel birden fazla satırda olabilir; stok kontrolü toplam üzerinden.
	requested := make(map[uint]int)
	for _, it := range in.Items {
		requested[it.ArticleID] += it.Quantity
	}
	ids := make([]uint, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// Artikel satırları id sırasıyla kilitlenir; aynı artikeli satan eşzamanlı
	// faturalar burada sıraya girer.
	var articles []models.Article
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id IN ?", in.BusinessID, ids).
		Order("id").
		Find(&articles).Error; err != nil {
		return 0, err
	}
	if len(articles) != len(ids) {
		return 0, errInvalidArticle
	}
	byID := make(map[uint]models.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}

	levels, err := ledger.StockLevels(tx, in.BusinessID, ids)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if requested[id] > levels[id] {
			return 0, apperror.Validation(fmt.Sprintf(
				"Insufficient stock for article %s: available %d, requested %d",
				byID[id].ArticleNo, levels[id], requested[id]))
		}
	}

	items := make([]models.InvoiceItem, 0, len(in.Items))
	gross := 0.0
	for _, it := range in.Items {
		price := byID[it.ArticleID].SellingPrice
		items = append(items, models.InvoiceItem{
			ArticleID:            it.ArticleID,
			Quantity:             it.Quantity,
			SellingPriceSnapshot: price,
		})
		gross += float64(it.Quantity) * price
	}
	gross = roundMoney(gross)
	if in.GrossAmount != nil {
		gross = *in.GrossAmount
	}
	net := roundMoney(gross * (1 - in.Discount/100))
	if in.NetAmount != nil {
		net = *in.NetAmount
	}

	number, err := allocateNumber(tx, in.BusinessID, now)
	if err != nil {
		return 0, err
	}

	invoiceDate := now
	if in.Date != nil {
		invoiceDate = in.Date.UTC()
	}

	inv := models.Invoice{
		BusinessID:    in.BusinessID,
		UserID:        in.UserID,
		InvoiceNumber: number,
		InvoiceDate:   invoiceDate,
		CustomerID:    in.CustomerID,
		IsWalkIn:      in.CustomerID == nil,
		Discount:      in.Discount,
		GrossAmount:   gross,
		NetAmount:     net,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         items,
	}
	if err := tx.Create(&inv).Error; err != nil {
		return 0, err
	}

	businessID := in.BusinessID
	if err := audit.WriteLog(tx, audit.LogOptions{
		BusinessID:  &businessID,
		UserID:      in.UserID,
		UserName:    in.UserName,
		EntityType:  "invoice",
		EntityID:    audit.ID(inv.ID),
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("Invoice %s issued: %d line(s), net %.2f", inv.InvoiceNumber, len(items), inv.NetAmount),
		After: map[string]interface{}{
			"invoice_number": inv.InvoiceNumber,
			"customer_id":    inv.CustomerID,
			"discount":       inv.Discount,
			"gross_amount":   inv.GrossAmount,
			"net_amount":     inv.NetAmount,
		},
	}); err != nil {
		return 0, err
	}

	return inv.ID, nil
}

// Get: başka işletmenin faturası bulunamadı olarak döner.
func (s *Service) Get(ctx context.Context, businessID, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Article").
		Where("id = ? AND business_id = ?", id, businessID).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("Invoice not found")
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Service) List(ctx context.Context, businessID uint, f ListFilter) ([]models.Invoice, error) {
	dbq := s.db.WithContext(ctx).
		Preload("Customer").
		Where("business_id = ?", businessID)

	if f.CustomerID != nil {
		dbq = dbq.Where("customer_id = ?", *f.CustomerID)
	}
	if f.WalkIn != nil {
		dbq = dbq.Where("is_walk_in = ?", *f.WalkIn)
	}
	if f.From != nil {
		dbq = dbq.Where("created_at >= ?", ledger.StartOfDay(*f.From))
	}
	if f.To != nil {
		dbq = dbq.Where("created_at <= ?", ledger.EndOfDay(*f.To))
	}

	var rows []models.Invoice
	if err := dbq.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
