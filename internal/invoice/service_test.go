package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"retail-backend/internal/apperror"
	"retail-backend/internal/ledger"
	"retail-backend/internal/models"
	"retail-backend/internal/testutil"

	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	business models.Business
	user     models.User
	article  models.Article
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	u := testutil.User(t, db, "clerk", models.RoleUser, &b.ID)
	a := testutil.Article(t, db, b.ID, u.ID, "ART-1", 250, 10)
	return fixture{db: db, business: b, user: u, article: a}
}

func clock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 9, 0, 0, 0, time.UTC) }
}

func (f fixture) input(qty int) CreateInput {
	return CreateInput{
		BusinessID: f.business.ID,
		UserID:     f.user.ID,
		UserName:   f.user.Name,
		Items:      []ItemInput{{ArticleID: f.article.ID, Quantity: qty}},
	}
}

func TestCreateWalkInInvoice(t *testing.T) {
	f := setup(t)
	svc := NewService(f.db).WithClock(clock(2025, 5, 2))

	in := f.input(3)
	in.Discount = 10
	inv, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.InvoiceNumber != "INV-25001" {
		t.Fatalf("expected INV-25001 got %s", inv.InvoiceNumber)
	}
	if !inv.IsWalkIn || inv.CustomerID != nil {
		t.Fatalf("expected walk-in invoice")
	}
	if inv.GrossAmount != 750 || inv.NetAmount != 675 {
		t.Fatalf("unexpected amounts gross=%.2f net=%.2f", inv.GrossAmount, inv.NetAmount)
	}
	if len(inv.Items) != 1 || inv.Items[0].SellingPriceSnapshot != 250 {
		t.Fatalf("unexpected items %+v", inv.Items)
	}

	stock, err := ledger.CurrentStock(f.db, f.business.ID, f.article.ID)
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if stock != 7 {
		t.Fatalf("expected stock 7 got %d", stock)
	}

	var logs int64
	f.db.Model(&models.AuditLog{}).Where("entity_type = ? AND entity_id = ?", "invoice", fmt.Sprint(inv.ID)).Count(&logs)
	if logs != 1 {
		t.Fatalf("expected one audit entry got %d", logs)
	}
}

func TestNumberContinuesAfterExistingInvoices(t *testing.T) {
	f := setup(t)
	for i := 1; i <= 7; i++ {
		inv := models.Invoice{
			BusinessID:    f.business.ID,
			UserID:        f.user.ID,
			InvoiceNumber: FormatNumber(25, i),
			InvoiceDate:   time.Date(2025, 1, i, 0, 0, 0, 0, time.UTC),
			IsWalkIn:      true,
		}
		if err := f.db.Create(&inv).Error; err != nil {
			t.Fatalf("seed invoice: %v", err)
		}
	}

	svc := NewService(f.db).WithClock(clock(2025, 6, 1))
	inv, err := svc.Create(context.Background(), f.input(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.InvoiceNumber != "INV-25008" {
		t.Fatalf("expected INV-25008 got %s", inv.InvoiceNumber)
	}

	next, err := svc.Create(context.Background(), f.input(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if next.InvoiceNumber != "INV-25009" {
		t.Fatalf("expected INV-25009 got %s", next.InvoiceNumber)
	}
}

func TestNumberResetsOnNewYear(t *testing.T) {
	f := setup(t)
	svc := NewService(f.db)

	if _, err := svc.WithClock(clock(2025, 12, 31)).Create(context.Background(), f.input(1)); err != nil {
		t.Fatalf("create 2025: %v", err)
	}
	if _, err := svc.WithClock(clock(2025, 12, 31)).Create(context.Background(), f.input(1)); err != nil {
		t.Fatalf("create 2025: %v", err)
	}
	inv, err := svc.WithClock(clock(2026, 1, 1)).Create(context.Background(), f.input(1))
	if err != nil {
		t.Fatalf("create 2026: %v", err)
	}
	if inv.InvoiceNumber != "INV-26001" {
		t.Fatalf("expected INV-26001 got %s", inv.InvoiceNumber)
	}
}

func TestNumbersArePerTenant(t *testing.T) {
	f := setup(t)
	other := testutil.Business(t, f.db, "Other")
	ou := testutil.User(t, f.db, "other-clerk", models.RoleUser, &other.ID)
	oa := testutil.Article(t, f.db, other.ID, ou.ID, "ART-1", 100, 5)

	svc := NewService(f.db).WithClock(clock(2025, 3, 1))
	if _, err := svc.Create(context.Background(), f.input(1)); err != nil {
		t.Fatalf("create: %v", err)
	}
	inv, err := svc.Create(context.Background(), CreateInput{
		BusinessID: other.ID,
		UserID:     ou.ID,
		Items:      []ItemInput{{ArticleID: oa.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create other: %v", err)
	}
	if inv.InvoiceNumber != "INV-25001" {
		t.Fatalf("expected independent sequence, got %s", inv.InvoiceNumber)
	}
}

func TestInsufficientStockRejected(t *testing.T) {
	f := setup(t)
	svc := NewService(f.db)

	// Aynı artikel iki satırda: toplam 11 > 10
	in := f.input(6)
	in.Items = append(in.Items, ItemInput{ArticleID: f.article.ID, Quantity: 5})
	_, err := svc.Create(context.Background(), in)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
	if !strings.Contains(err.Error(), "available 10, requested 11") {
		t.Fatalf("unexpected message %q", err.Error())
	}

	var count int64
	f.db.Model(&models.Invoice{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no invoice to be stored, got %d", count)
	}
	var counters int64
	f.db.Model(&models.InvoiceCounter{}).Count(&counters)
	if counters != 0 {
		t.Fatalf("expected counter rollback, got %d rows", counters)
	}
}

func TestPriceSnapshotSurvivesPriceChange(t *testing.T) {
	f := setup(t)
	svc := NewService(f.db)

	inv, err := svc.Create(context.Background(), f.input(2))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.db.Model(&models.Article{}).Where("id = ?", f.article.ID).Update("selling_price", 999).Error; err != nil {
		t.Fatalf("update price: %v", err)
	}

	got, err := svc.Get(context.Background(), f.business.ID, inv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Items[0].SellingPriceSnapshot != 250 {
		t.Fatalf("expected snapshot 250 got %.2f", got.Items[0].SellingPriceSnapshot)
	}
	if got.NetAmount != 500 {
		t.Fatalf("expected net 500 got %.2f", got.NetAmount)
	}
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	svc := NewService(f.db)
	ctx := context.Background()

	empty := f.input(1)
	empty.Items = nil
	if _, err := svc.Create(ctx, empty); err != errNoItems {
		t.Fatalf("expected errNoItems got %v", err)
	}
	if _, err := svc.Create(ctx, f.input(0)); err != errInvalidItem {
		t.Fatalf("expected errInvalidItem got %v", err)
	}
	discount := f.input(1)
	discount.Discount = 120
	if _, err := svc.Create(ctx, discount); err != errDiscount {
		t.Fatalf("expected errDiscount got %v", err)
	}
	unknown := f.input(1)
	unknown.Items[0].ArticleID = 9999
	if _, err := svc.Create(ctx, unknown); err != errInvalidArticle {
		t.Fatalf("expected errInvalidArticle got %v", err)
	}
	missing := f.input(1)
	missing.CustomerID = testutil.Ptr(uint(9999))
	if _, err := svc.Create(ctx, missing); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	f := setup(t)
	other := testutil.Business(t, f.db, "Other")
	svc := NewService(f.db)

	inv, err := svc.Create(context.Background(), f.input(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Get(context.Background(), other.ID, inv.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found across tenants got %v", err)
	}

	// Başka işletmenin artikeli satılamaz.
	in := f.input(1)
	in.BusinessID = other.ID
	if _, err := svc.Create(context.Background(), in); err != errInvalidArticle {
		t.Fatalf("expected errInvalidArticle got %v", err)
	}

	rows, err := svc.List(context.Background(), other.ID, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty list for other tenant got %d", len(rows))
	}
}

func TestListFilters(t *testing.T) {
	f := setup(t)
	c := testutil.Customer(t, f.db, f.business.ID, f.user.ID, "Acme", "03001112222")
	svc := NewService(f.db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, f.input(1)); err != nil {
		t.Fatalf("walk-in: %v", err)
	}
	in := f.input(1)
	in.CustomerID = &c.ID
	if _, err := svc.Create(ctx, in); err != nil {
		t.Fatalf("customer invoice: %v", err)
	}

	rows, err := svc.List(ctx, f.business.ID, ListFilter{CustomerID: &c.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Customer == nil || rows[0].Customer.Name != "Acme" {
		t.Fatalf("unexpected customer filter result %+v", rows)
	}
	rows, err = svc.List(ctx, f.business.ID, ListFilter{WalkIn: testutil.Ptr(true)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || !rows[0].IsWalkIn {
		t.Fatalf("unexpected walk-in filter result %+v", rows)
	}
}
