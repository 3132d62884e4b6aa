package business

import (
	"fmt"
	"testing"
	"time"

	"retail-backend/internal/apperror"
	"retail-backend/internal/auth"
	"retail-backend/internal/models"
	"retail-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newApp(developerID uint) *fiber.App {
	return testutil.App(map[string]any{
		auth.CtxUserIDKey:   developerID,
		auth.CtxUserNameKey: "dev",
		auth.CtxUserRoleKey: models.RoleDeveloper,
	}, func(r fiber.Router) {
		r.Post("/businesses", CreateBusinessHandler())
		r.Get("/businesses/:id", GetBusinessHandler())
		r.Patch("/businesses/:id/toggle", ToggleBusinessHandler())
		r.Delete("/businesses/:id", DeleteBusinessHandler())
	})
}

func newBusinessBody(username, phone string) map[string]any {
	return map[string]any{
		"name":     "Corner Shop",
		"owner":    "Ayşe",
		"username": username,
		"password": testutil.Password,
		"phone_no": phone,
		"type":     "monthly",
		"price":    1500,
	}
}

func TestCreateBusinessWithOwner(t *testing.T) {
	db := testutil.OpenDB(t)
	dev := testutil.User(t, db, "dev", models.RoleDeveloper, nil)
	app := newApp(dev.ID)

	var out BusinessResponse
	if status := testutil.Do(t, app, "POST", "/businesses", newBusinessBody("ayse", "03001112233"), &out); status != fiber.StatusCreated {
		t.Fatalf("create: %d", status)
	}
	if out.User == nil || out.User.Username != "ayse" || !out.IsActive {
		t.Fatalf("unexpected business %+v", out)
	}

	var owner models.User
	if err := db.Preload("Business").First(&owner, "username = ?", "ayse").Error; err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner.Role != models.RoleAdmin || owner.Business == nil || owner.Business.ID != out.ID {
		t.Fatalf("owner not linked to business: %+v", owner)
	}

	var dup map[string]any
	status := testutil.Do(t, app, "POST", "/businesses", newBusinessBody("other", "03001112233"), &dup)
	if status != fiber.StatusConflict {
		t.Fatalf("duplicate phone: expected 409 got %d %v", status, dup)
	}

	body := newBusinessBody("third", "03009998877")
	body["type"] = "weekly"
	if status := testutil.Do(t, app, "POST", "/businesses", body, nil); status != fiber.StatusBadRequest {
		t.Fatalf("bad type: expected 400 got %d", status)
	}
	if status := testutil.Do(t, app, "GET", fmt.Sprintf("/businesses/%d1x", out.ID), nil, nil); status != fiber.StatusBadRequest {
		t.Fatalf("malformed id: expected 400 got %d", status)
	}
}

func TestToggleBusinessClosesSessions(t *testing.T) {
	db := testutil.OpenDB(t)
	dev := testutil.User(t, db, "dev", models.RoleDeveloper, nil)
	b := testutil.Business(t, db, "Shop")
	clerk := testutil.User(t, db, "clerk", models.RoleUser, &b.ID)
	openSession(t, db, clerk.ID)

	var out map[string]any
	if status := testutil.Do(t, newApp(dev.ID), "PATCH", fmt.Sprintf("/businesses/%d/toggle", b.ID), nil, &out); status != fiber.StatusOK {
		t.Fatalf("toggle: %d %v", status, out)
	}
	if out["closedSessions"].(float64) != 1 {
		t.Fatalf("expected 1 closed session, got %v", out["closedSessions"])
	}
	var active int64
	db.Model(&models.Session{}).Where("is_active = ?", true).Count(&active)
	if active != 0 {
		t.Fatalf("expected no active session, got %d", active)
	}
}

func TestPurgeTenant(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	keep := testutil.Business(t, db, "Other")
	owner := testutil.User(t, db, "owner", models.RoleAdmin, &b.ID)
	if err := db.Model(&b).Update("user_id", owner.ID).Error; err != nil {
		t.Fatalf("owner: %v", err)
	}
	clerk := testutil.User(t, db, "clerk", models.RoleUser, &b.ID)
	otherUser := testutil.User(t, db, "other", models.RoleAdmin, &keep.ID)
	openSession(t, db, clerk.ID)
	openSession(t, db, otherUser.ID)

	a := testutil.Article(t, db, b.ID, owner.ID, "A-1", 100, 5)
	cu := testutil.Customer(t, db, b.ID, owner.ID, "Acme", "03001234567")
	testutil.Article(t, db, keep.ID, otherUser.ID, "A-1", 100, 5)
	inv := models.Invoice{
		BusinessID:    b.ID,
		UserID:        clerk.ID,
		InvoiceNumber: "INV-25001",
		InvoiceDate:   time.Now().UTC(),
		CustomerID:    &cu.ID,
		NetAmount:     200,
		Items:         []models.InvoiceItem{{ArticleID: a.ID, Quantity: 2, SellingPriceSnapshot: 100}},
	}
	if err := db.Create(&inv).Error; err != nil {
		t.Fatalf("invoice: %v", err)
	}
	if err := db.Create(&models.InvoiceCounter{BusinessID: b.ID, Year: 25, LastSerial: 1}).Error; err != nil {
		t.Fatalf("counter: %v", err)
	}
	if err := db.Create(&models.Payment{
		BusinessID: b.ID, UserID: clerk.ID, CustomerID: cu.ID,
		Method: models.PaymentCash, Amount: 50, Remarks: "-", Date: time.Now().UTC(),
	}).Error; err != nil {
		t.Fatalf("payment: %v", err)
	}
	if err := db.Create(&models.AuditLog{
		BusinessID: &b.ID, UserID: owner.ID, UserName: "owner",
		EntityType: "invoice", EntityID: "1", Action: models.AuditActionCreate,
	}).Error; err != nil {
		t.Fatalf("audit: %v", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error { return PurgeTenant(tx, b.ID) }); err != nil {
		t.Fatalf("purge: %v", err)
	}

	for name, model := range map[string]any{
		"invoice_items": &models.InvoiceItem{},
		"invoices":      &models.Invoice{},
		"payments":      &models.Payment{},
		"customers":     &models.Customer{},
		"subscriptions": &models.Subscription{},
	} {
		var n int64
		db.Model(model).Count(&n)
		want := int64(0)
		if name == "subscriptions" {
			want = 1 // diğer işletmeninki
		}
		if n != want {
			t.Errorf("%s: expected %d rows got %d", name, want, n)
		}
	}
	var users, articles, sessions, businesses, logs int64
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.Article{}).Count(&articles)
	db.Model(&models.Session{}).Count(&sessions)
	db.Model(&models.Business{}).Count(&businesses)
	db.Model(&models.AuditLog{}).Where("business_id = ?", b.ID).Count(&logs)
	if users != 1 || articles != 1 || sessions != 1 || businesses != 1 {
		t.Fatalf("other tenant touched: users=%d articles=%d sessions=%d businesses=%d", users, articles, sessions, businesses)
	}
	if logs != 1 {
		t.Fatalf("expected audit log to survive, got %d", logs)
	}
}

func TestDeleteBusiness(t *testing.T) {
	db := testutil.OpenDB(t)
	dev := testutil.User(t, db, "dev", models.RoleDeveloper, nil)
	app := newApp(dev.ID)

	var created BusinessResponse
	if status := testutil.Do(t, app, "POST", "/businesses", newBusinessBody("ayse", "03001112233"), &created); status != fiber.StatusCreated {
		t.Fatalf("create: %d", status)
	}

	var out map[string]any
	if status := testutil.Do(t, app, "DELETE", fmt.Sprintf("/businesses/%d", created.ID), nil, &out); status != fiber.StatusOK {
		t.Fatalf("delete: %d %v", status, out)
	}
	status := testutil.Do(t, app, "GET", fmt.Sprintf("/businesses/%d", created.ID), nil, &out)
	if status != fiber.StatusNotFound || out["code"] != apperror.CodeNotFound {
		t.Fatalf("expected 404 after delete, got %d %v", status, out)
	}
}

func openSession(t *testing.T, db *gorm.DB, userID uint) {
	t.Helper()
	if err := db.Create(&models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		LoginTime: time.Now().UTC(),
		IsActive:  true,
	}).Error; err != nil {
		t.Fatalf("session: %v", err)
	}
}
