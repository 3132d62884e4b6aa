package testutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"retail-backend/internal/apperror"

	"github.com/gofiber/fiber/v2"
)

// App: JWT doğrulaması olmadan handler testi. locals her isteğe aynen yazılır,
// hatalar sunucudaki gibi {"error","code"} gövdesine çevrilir.
func App(locals map[string]any, register func(r fiber.Router)) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
			return c.Status(apperror.Status(err)).JSON(fiber.Map{
				"error": err.Error(),
				"code":  apperror.CodeOf(err),
			})
		},
	})
	app.Use(func(c *fiber.Ctx) error {
		for k, v := range locals {
			c.Locals(k, v)
		}
		return c.Next()
	})
	register(app)
	return app
}

// Do: isteği gönderir, gövdeyi out'a çözer (out nil olabilir) ve durum kodunu döner.
func Do(t *testing.T, app *fiber.App, method, path string, body, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode
}
