package inventory

import (
	"fmt"
	"testing"

	"retail-backend/internal/apperror"
	"retail-backend/internal/auth"
	"retail-backend/internal/models"
	"retail-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
)

func newApp(userID, businessID uint) *fiber.App {
	return testutil.App(map[string]any{
		auth.CtxUserIDKey:     userID,
		auth.CtxUserNameKey:   "owner",
		auth.CtxUserRoleKey:   models.RoleAdmin,
		auth.CtxBusinessIDKey: &businessID,
	}, func(r fiber.Router) {
		r.Post("/articles", CreateArticleHandler())
		r.Get("/articles", ListArticlesHandler())
		r.Post("/articles/add-stock", AddStockHandler())
		r.Get("/articles/:id", GetArticleHandler())
		r.Put("/articles/:id", UpdateArticleHandler())
		r.Get("/articles/:id/movements", ListMovementsHandler())
	})
}

func TestCreateArticle(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	u := testutil.User(t, db, "owner", models.RoleAdmin, &b.ID)
	app := newApp(u.ID, b.ID)

	article := map[string]any{
		"article_no": "TS-01", "season": "Summer", "size": "L", "category": "Shirts",
		"purchase_price": 400, "selling_price": 1000, "initial_stock": 6,
	}
	var out ArticleResponse
	if status := testutil.Do(t, app, "POST", "/articles", article, &out); status != fiber.StatusCreated {
		t.Fatalf("create: %d", status)
	}
	if out.Stock != 6 || out.ArticleNo != "TS-01" {
		t.Fatalf("unexpected article %+v", out)
	}

	var conflict map[string]any
	if status := testutil.Do(t, app, "POST", "/articles", article, &conflict); status != fiber.StatusConflict {
		t.Fatalf("duplicate article_no: expected 409 got %d %v", status, conflict)
	}

	bad := []map[string]any{
		{"season": "Summer", "size": "L", "category": "Shirts"},
		{"article_no": "X", "season": "Summer", "size": "L", "category": "Shirts", "selling_price": -1},
		{"article_no": "X", "season": "Summer", "size": "L", "category": "Shirts", "initial_stock": -3},
	}
	for _, body := range bad {
		if status := testutil.Do(t, app, "POST", "/articles", body, nil); status != fiber.StatusBadRequest {
			t.Errorf("body %v: expected 400 got %d", body, status)
		}
	}
}

func TestAddStock(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	other := testutil.Business(t, db, "Other")
	u := testutil.User(t, db, "owner", models.RoleAdmin, &b.ID)
	a := testutil.Article(t, db, b.ID, u.ID, "A-1", 100, 2)
	foreign := testutil.Article(t, db, other.ID, u.ID, "F-1", 100, 2)
	app := newApp(u.ID, b.ID)

	var out map[string]any
	if status := testutil.Do(t, app, "POST", "/articles/add-stock", map[string]any{"articleId": a.ID, "quantity": 5}, &out); status != fiber.StatusCreated {
		t.Fatalf("add stock: %d %v", status, out)
	}
	if out["stock"].(float64) != 7 {
		t.Fatalf("expected stock 7, got %v", out["stock"])
	}

	if status := testutil.Do(t, app, "POST", "/articles/add-stock", map[string]any{"articleId": a.ID, "quantity": -1}, nil); status != fiber.StatusBadRequest {
		t.Fatalf("negative quantity: expected 400 got %d", status)
	}
	var nf map[string]any
	status := testutil.Do(t, app, "POST", "/articles/add-stock", map[string]any{"articleId": foreign.ID, "quantity": 1}, &nf)
	if status != fiber.StatusNotFound || nf["code"] != apperror.CodeNotFound {
		t.Fatalf("foreign article: expected 404 got %d %v", status, nf)
	}

	var mv struct {
		Article   ArticleResponse    `json:"article"`
		Movements []MovementResponse `json:"movements"`
		Sold      int64              `json:"sold"`
	}
	if status := testutil.Do(t, app, "GET", fmt.Sprintf("/articles/%d/movements", a.ID), nil, &mv); status != fiber.StatusOK {
		t.Fatalf("movements: %d", status)
	}
	if len(mv.Movements) != 2 || mv.Article.Stock != 7 || mv.Sold != 0 {
		t.Fatalf("unexpected movements %+v", mv)
	}
	for _, m := range mv.Movements {
		if m.Type != models.MovementIn {
			t.Fatalf("expected only in movements, got %+v", m)
		}
	}
}

func TestUpdateArticleStockChange(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	u := testutil.User(t, db, "owner", models.RoleAdmin, &b.ID)
	a := testutil.Article(t, db, b.ID, u.ID, "A-1", 100, 10)
	app := newApp(u.ID, b.ID)
	path := fmt.Sprintf("/articles/%d", a.ID)

	var out ArticleResponse
	if status := testutil.Do(t, app, "PUT", path, map[string]any{"stockChange": -4}, &out); status != fiber.StatusOK {
		t.Fatalf("update: %d", status)
	}
	if out.Stock != 6 || out.SellingPrice != 100 {
		t.Fatalf("unexpected article %+v", out)
	}

	var m models.ArticleStock
	if err := db.Where("article_id = ? AND quantity = ?", a.ID, -4).First(&m).Error; err != nil {
		t.Fatalf("movement: %v", err)
	}
	if m.Note != "Stock update" || m.Type != models.MovementTypeFor(-4) {
		t.Fatalf("unexpected movement %+v", m)
	}

	if status := testutil.Do(t, app, "PUT", path, map[string]any{"article_no": " "}, nil); status != fiber.StatusBadRequest {
		t.Fatalf("blank article_no: expected 400 got %d", status)
	}
	if status := testutil.Do(t, app, "GET", path+"x", nil, nil); status != fiber.StatusBadRequest {
		t.Fatalf("malformed id: expected 400 got %d", status)
	}
}

func TestListArticlesWithStock(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	u := testutil.User(t, db, "owner", models.RoleAdmin, &b.ID)
	a := testutil.Article(t, db, b.ID, u.ID, "A-1", 100, 10)
	testutil.Movement(t, db, a, u.ID, -3)
	testutil.Article(t, db, b.ID, u.ID, "B-1", 100, 0)

	var rows []ArticleResponse
	if status := testutil.Do(t, newApp(u.ID, b.ID), "GET", "/articles", nil, &rows); status != fiber.StatusOK {
		t.Fatalf("list: %d", status)
	}
	if len(rows) != 2 || rows[0].ArticleNo != "A-1" || rows[0].Stock != 7 || rows[1].Stock != 0 {
		t.Fatalf("unexpected rows %+v", rows)
	}
}
