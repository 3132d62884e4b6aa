package auth

import (
	"strings"
	"time"

	"retail-backend/internal/apperror"
	"retail-backend/internal/config"
	"retail-backend/internal/database"
	"retail-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	CtxUserIDKey     = "user_id"
	CtxUserNameKey   = "user_name"
	CtxUserRoleKey   = "user_role"
	CtxBusinessIDKey = "business_id"
	CtxSessionIDKey  = "session_id"
	CtxReadOnlyKey   = "read_only"
)

var (
	errTokenInvalid  = apperror.Unauthorized(apperror.CodeTokenInvalid, "Invalid or expired token")
	errSessionClosed = apperror.Unauthorized(apperror.CodeSessionClosed, "Session is no longer active")
	errReadOnly      = apperror.Forbidden(apperror.CodeReadOnly, "Subscription expired: account is in read-only mode")
)

// JWTMiddleware: imza ve süre kontrolünden sonra oturumun hâlâ aktif olduğunu,
// kullanıcının ve işletmenin aktif olduğunu doğrular ve salt-okunur durumu yeniden hesaplar.
func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header missing")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization format must be 'Bearer <token>'")
		}

		claims, err := ParseToken(cfg.JWTSecret, strings.TrimSpace(parts[1]))
		if err != nil {
			return errTokenInvalid
		}

		db := database.DB
		var session models.Session
		if err := db.First(&session, "id = ?", claims.SessionID).Error; err != nil {
			if database.IsNotFound(err) {
				return errSessionClosed
			}
			return err
		}
		if !session.IsActive || session.UserID != claims.UserID {
			return errSessionClosed
		}

		var user models.User
		if err := db.First(&user, "id = ?", claims.UserID).Error; err != nil {
			if database.IsNotFound(err) {
				return errTokenInvalid
			}
			return err
		}
		if !user.IsActive {
			return errUserInactive
		}

		access, err := EvaluateAccess(db, &user, time.Now().UTC())
		if err != nil {
			return err
		}

		c.Locals(CtxUserIDKey, user.ID)
		c.Locals(CtxUserNameKey, user.Name)
		c.Locals(CtxUserRoleKey, user.Role)
		c.Locals(CtxBusinessIDKey, user.BusinessID)
		c.Locals(CtxSessionIDKey, session.ID)
		c.Locals(CtxReadOnlyKey, access.ReadOnly)

		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Role information unavailable")
		}

		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return apperror.Forbidden(apperror.CodeForbidden, "You are not allowed to perform this action")
	}
}

// RequireWritable: salt-okunur moddaki kullanıcıların yazma isteklerini reddeder.
// Karar istemcinin gönderdiği bir bayrağa değil, middleware'in o istekte hesapladığı duruma dayanır.
func RequireWritable() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if IsReadOnly(c) {
			return errReadOnly
		}
		return c.Next()
	}
}

func IsReadOnly(c *fiber.Ctx) bool {
	ro, ok := c.Locals(CtxReadOnlyKey).(bool)
	// Bilgi yoksa güvenli tarafta kal.
	return !ok || ro
}

// CurrentUser: locals'tan kullanıcı id ve adı.
func CurrentUser(c *fiber.Ctx) (uint, string, error) {
	userID, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok || userID == 0 {
		return 0, "", fiber.NewError(fiber.StatusForbidden, "User information unavailable")
	}
	name, _ := c.Locals(CtxUserNameKey).(string)
	return userID, name, nil
}

func CurrentRole(c *fiber.Ctx) models.UserRole {
	role, _ := c.Locals(CtxUserRoleKey).(models.UserRole)
	return role
}

// TenantID: işlemin yapılacağı işletme. user/admin için kendi işletmesi,
// developer için ?business_id= parametresi zorunlu.
func TenantID(c *fiber.Ctx) (uint, error) {
	role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Role information unavailable")
	}

	if role != models.RoleDeveloper {
		bPtr, ok := c.Locals(CtxBusinessIDKey).(*uint)
		if !ok || bPtr == nil {
			return 0, errBusinessInactive
		}
		return *bPtr, nil
	}

	bidStr := c.Query("business_id")
	if bidStr == "" {
		return 0, apperror.Validation("business_id is required")
	}
	bid, ok := database.ParseID(bidStr)
	if !ok {
		return 0, apperror.Validation("business_id is invalid")
	}
	return bid, nil
}

// RequireTenant: işletme kapsamlı rotalarda tenant'ın çözülebildiğini doğrular.
// developer için verilen business_id gerçek bir işletme olmalı.
func RequireTenant() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := TenantID(c)
		if err != nil {
			return err
		}
		if CurrentRole(c) == models.RoleDeveloper {
			var count int64
			if err := database.DB.Model(&models.Business{}).Where("id = ?", businessID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return apperror.NotFound("Business not found")
			}
		}
		return c.Next()
	}
}
