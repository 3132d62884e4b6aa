package user

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
	"golang.org/x/crypto/bcrypt"
)

func newApp(actor models.User) *fiber.App {
	locals := map[string]any{
		auth.CtxUserIDKey:   actor.ID,
		auth.CtxUserNameKey: actor.Name,
		auth.CtxUserRoleKey: actor.Role,
	}
	if actor.BusinessID != nil {
		locals[auth.CtxBusinessIDKey] = actor.BusinessID
	}
	return testutil.App(locals, func(r fiber.Router) {
		r.Post("/users", CreateUserHandler())
		r.Get("/users", ListUsersHandler())
		r.Get("/users/:id", GetUserHandler())
		r.Patch("/users/:id/toggle", ToggleUserHandler())
		r.Put("/users/:id/password", ResetPasswordHandler())
	})
}

func TestAdminCreatesUsersInOwnBusiness(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	other := testutil.Business(t, db, "Other")
	admin := testutil.User(t, db, "owner", models.RoleAdmin, &b.ID)
	app := newApp(admin)

	var out auth.UserSummary
	status := testutil.Do(t, app, "POST", "/users", map[string]any{
		"name": "Clerk", "username": "clerk", "password": "secret1",
		"businessId": other.ID, // admin için yok sayılır
	}, &out)
	if status != fiber.StatusCreated {
		t.Fatalf("create: %d", status)
	}
	if out.Role != models.RoleUser || out.BusinessID == nil || *out.BusinessID != b.ID {
		t.Fatalf("unexpected user %+v", out)
	}

	var errBody map[string]any
	status = testutil.Do(t, app, "POST", "/users", map[string]any{
		"name": "Dev", "username": "dev2", "password": "secret1", "role": "developer",
	}, &errBody)
	if status != fiber.StatusForbidden || errBody["code"] != apperror.CodeForbidden {
		t.Fatalf("developer by admin: expected 403 got %d %v", status, errBody)
	}

	cases := []struct {
		body map[string]any
		want int
	}{
		{map[string]any{"name": "X", "username": "clerk", "password": "secret1"}, fiber.StatusConflict},
		{map[string]any{"name": "X", "username": "short", "password": "123"}, fiber.StatusBadRequest},
		{map[string]any{"name": "", "username": "noname", "password": "secret1"}, fiber.StatusBadRequest},
		{map[string]any{"name": "X", "username": "boss", "password": "secret1", "role": "owner"}, fiber.StatusBadRequest},
	}
	for _, c := range cases {
		if status := testutil.Do(t, app, "POST", "/users", c.body, nil); status != c.want {
			t.Errorf("body %v: expected %d got %d", c.body, c.want, status)
		}
	}

	testutil.User(t, db, "foreign", models.RoleUser, &other.ID)
	var rows []auth.UserSummary
	if status := testutil.Do(t, app, "GET", "/users", nil, &rows); status != fiber.StatusOK {
		t.Fatalf("list: %d", status)
	}
	if len(rows) != 2 {
		t.Fatalf("admin should only see own business users, got %+v", rows)
	}
}

func TestDeveloperCreatesUsers(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	dev := testutil.User(t, db, "dev", models.RoleDeveloper, nil)
	app := newApp(dev)

	if status := testutil.Do(t, app, "POST", "/users", map[string]any{
		"name": "Owner", "username": "owner", "password": "secret1", "role": "admin",
	}, nil); status != fiber.StatusBadRequest {
		t.Fatalf("missing businessId: expected 400 got %d", status)
	}
	if status := testutil.Do(t, app, "POST", "/users", map[string]any{
		"name": "Owner", "username": "owner", "password": "secret1", "role": "admin", "businessId": 999,
	}, nil); status != fiber.StatusNotFound {
		t.Fatalf("unknown business: expected 404 got %d", status)
	}

	var out auth.UserSummary
	if status := testutil.Do(t, app, "POST", "/users", map[string]any{
		"name": "Owner", "username": "owner", "password": "secret1", "role": "admin", "businessId": b.ID,
	}, &out); status != fiber.StatusCreated {
		t.Fatalf("create admin: %d", status)
	}
	if out.Role != models.RoleAdmin || out.BusinessID == nil || *out.BusinessID != b.ID {
		t.Fatalf("unexpected user %+v", out)
	}

	if status := testutil.Do(t, app, "POST", "/users", map[string]any{
		"name": "Dev 2", "username": "dev2", "password": "secret1", "role": "developer", "businessId": b.ID,
	}, &out); status != fiber.StatusCreated {
		t.Fatalf("create developer: %d", status)
	}
	if out.BusinessID != nil {
		t.Fatalf("developer must not belong to a business: %+v", out)
	}
}

func TestToggleUser(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	other := testutil.Business(t, db, "Other")
	admin := testutil.User(t, db, "owner", models.RoleAdmin, &b.ID)
	clerk := testutil.User(t, db, "clerk", models.RoleUser, &b.ID)
	foreign := testutil.User(t, db, "foreign", models.RoleUser, &other.ID)
	if err := db.Create(&models.Session{
		ID: uuid.NewString(), UserID: clerk.ID, LoginTime: time.Now().UTC(), IsActive: true,
	}).Error; err != nil {
		t.Fatalf("session: %v", err)
	}
	app := newApp(admin)

	if status := testutil.Do(t, app, "PATCH", fmt.Sprintf("/users/%d/toggle", admin.ID), nil, nil); status != fiber.StatusBadRequest {
		t.Fatalf("self toggle: expected 400 got %d", status)
	}
	if status := testutil.Do(t, app, "PATCH", fmt.Sprintf("/users/%d/toggle", foreign.ID), nil, nil); status != fiber.StatusNotFound {
		t.Fatalf("foreign user: expected 404 got %d", status)
	}

	var out auth.UserSummary
	if status := testutil.Do(t, app, "PATCH", fmt.Sprintf("/users/%d/toggle", clerk.ID), nil, &out); status != fiber.StatusOK {
		t.Fatalf("toggle: %d", status)
	}
	if out.IsActive {
		t.Fatalf("expected clerk to be inactive")
	}
	var s models.Session
	db.First(&s, "user_id = ?", clerk.ID)
	if s.IsActive || s.LogoutTime == nil {
		t.Fatalf("expected clerk session to be closed, got %+v", s)
	}
}

func TestResetPassword(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	admin := testutil.User(t, db, "owner", models.RoleAdmin, &b.ID)
	clerk := testutil.User(t, db, "clerk", models.RoleUser, &b.ID)
	app := newApp(admin)
	path := fmt.Sprintf("/users/%d/password", clerk.ID)

	if status := testutil.Do(t, app, "PUT", path, map[string]any{"password": "123"}, nil); status != fiber.StatusBadRequest {
		t.Fatalf("short password: expected 400 got %d", status)
	}
	if status := testutil.Do(t, app, "PUT", path, map[string]any{"password": "new-secret"}, nil); status != fiber.StatusOK {
		t.Fatalf("reset: %d", status)
	}
	var got models.User
	db.First(&got, "id = ?", clerk.ID)
	if bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("new-secret")) != nil {
		t.Fatalf("password was not changed")
	}
	if status := testutil.Do(t, app, "GET", fmt.Sprintf("/users/%dz", clerk.ID), nil, nil); status != fiber.StatusBadRequest {
		t.Fatalf("malformed id: expected 400 got %d", status)
	}
}
