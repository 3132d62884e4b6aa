package server

import (
	"errors"
	"log"
	"strings"

	"retail-backend/internal/apperror"
	"retail-backend/internal/audit"
	"retail-backend/internal/auth"
	"retail-backend/internal/business"
	"retail-backend/internal/config"
	"retail-backend/internal/customer"
	"retail-backend/internal/dashboard"
	"retail-backend/internal/database"
	"retail-backend/internal/inventory"
	"retail-backend/internal/invoice"
	"retail-backend/internal/models"
	"retail-backend/internal/payment"
	"retail-backend/internal/sessions"
	"retail-backend/internal/subscription"
	"retail-backend/internal/user"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// ErrorHandler: *fiber.Error ve *apperror.Error kendi durum kodlarıyla döner;
// diğer hatalar loglanır ve detay verilmeden 500 döner.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"error": fe.Message,
		})
	}

	var ae *apperror.Error
	if errors.As(err, &ae) {
		return c.Status(apperror.Status(ae)).JSON(fiber.Map{
			"error": ae.Message,
			"code":  ae.Code,
		})
	}

	log.Printf("Unexpected error on %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "unexpected server error",
	})
}

// NewApp: bütün middleware ve route'ları kurulmuş fiber uygulaması.
// database.DB önceden açılmış olmalı.
func NewApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
		AppName:      "retail-backend",
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// CORS origins virgülle ayrılmış string
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := database.DB.Exec("SELECT 1").Error; err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/login", auth.LoginHandler(cfg))
	api.Post("/auth/logout", auth.LogoutHandler())

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	writable := auth.RequireWritable()
	developer := auth.RequireRole(models.RoleDeveloper)
	managers := auth.RequireRole(models.RoleDeveloper, models.RoleAdmin)
	tenantUsers := auth.RequireRole(models.RoleAdmin, models.RoleUser)

	protected.Get("/auth/status", auth.StatusHandler())
	protected.Get("/auth/me", auth.MeHandler())

	// Oturum yönetimi
	protected.Get("/sessions/active", managers, sessions.ListActiveSessionsHandler())
	protected.Post("/sessions/:id/close", managers, sessions.CloseSessionHandler())

	// İşletmeler (developer)
	protected.Post("/businesses", developer, business.CreateBusinessHandler())
	protected.Get("/businesses", developer, business.ListBusinessesHandler())
	protected.Get("/businesses/:id", developer, business.GetBusinessHandler())
	protected.Put("/businesses/:id", developer, business.UpdateBusinessHandler())
	protected.Patch("/businesses/:id/toggle", developer, business.ToggleBusinessHandler())
	protected.Delete("/businesses/:id", developer, business.DeleteBusinessHandler())

	// Abonelikler; /me, /:id'den önce kayıtlı olmalı
	protected.Get("/subscriptions/me", tenantUsers, subscription.MySubscriptionHandler())
	protected.Post("/subscriptions", developer, subscription.CreateSubscriptionHandler())
	protected.Get("/subscriptions", developer, subscription.ListSubscriptionsHandler())
	protected.Get("/subscriptions/:id", developer, subscription.GetSubscriptionHandler())
	protected.Put("/subscriptions/:id", developer, subscription.UpdateSubscriptionHandler())
	protected.Delete("/subscriptions/:id", developer, subscription.DeleteSubscriptionHandler())

	// Kullanıcılar
	protected.Post("/users", managers, writable, user.CreateUserHandler())
	protected.Get("/users", managers, user.ListUsersHandler())
	protected.Get("/users/:id", managers, user.GetUserHandler())
	protected.Patch("/users/:id/toggle", managers, writable, user.ToggleUserHandler())
	protected.Put("/users/:id/password", managers, writable, user.ResetPasswordHandler())

	// Audit
	protected.Get("/audit-logs", managers, audit.ListAuditLogsHandler())

	// Dashboard
	protected.Get("/dashboard/stats", dashboard.StatsHandler())

	// İşletme kapsamlı route'lar
	tenant := protected.Group("", auth.RequireTenant())

	tenant.Get("/dashboard/sales", dashboard.SalesChartHandler())

	// Artikeller ve stok
	tenant.Post("/articles", writable, inventory.CreateArticleHandler())
	tenant.Get("/articles", inventory.ListArticlesHandler())
	tenant.Post("/articles/add-stock", writable, inventory.AddStockHandler())
	tenant.Get("/articles/:id", inventory.GetArticleHandler())
	tenant.Put("/articles/:id", writable, inventory.UpdateArticleHandler())
	tenant.Delete("/articles/:id", writable, inventory.DeleteArticleHandler())
	tenant.Get("/articles/:id/movements", inventory.ListMovementsHandler())

	// Müşteriler
	tenant.Post("/customers", writable, customer.CreateCustomerHandler())
	tenant.Get("/customers", customer.ListCustomersHandler())
	tenant.Get("/customers/:id", customer.GetCustomerHandler())
	tenant.Put("/customers/:id", writable, customer.UpdateCustomerHandler())
	tenant.Delete("/customers/:id", writable, customer.DeleteCustomerHandler())
	tenant.Patch("/customers/:id/toggle", writable, customer.ToggleCustomerHandler())
	// Ekstre sadece okur, salt-okunur modda da açık.
	tenant.Patch("/customers/:id/statement", customer.StatementHandler())

	// Faturalar
	tenant.Post("/invoices", writable, invoice.CreateInvoiceHandler())
	tenant.Get("/invoices", invoice.ListInvoicesHandler())
	tenant.Get("/invoices/:id", invoice.GetInvoiceHandler())

	// Ödemeler
	tenant.Post("/payments", writable, payment.CreatePaymentHandler())
	tenant.Get("/payments", payment.ListPaymentsHandler())
	tenant.Get("/payments/customer/:customerId", payment.CustomerPaymentsHandler())

	return app
}
