package auth

import (
	"time"

	"retail-backend/internal/apperror"
	"retail-backend/internal/config"
	"retail-backend/internal/database"
	"retail-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LogoutRequest struct {
	SessionID string `json:"sessionId"`
}

type UserSummary struct {
	ID         uint            `json:"id"`
	Name       string          `json:"name"`
	Username   string          `json:"username"`
	Role       models.UserRole `json:"role"`
	BusinessID *uint           `json:"businessId"`
	IsActive   bool            `json:"isActive"`
	LastLogin  *time.Time      `json:"lastLogin"`
}

type LoginResponse struct {
	Token      string          `json:"token"`
	SessionID  string          `json:"sessionId"`
	Role       models.UserRole `json:"role"`
	BusinessID *uint           `json:"businessId"`
	IsReadOnly bool            `json:"isReadOnly"`
	User       UserSummary     `json:"user"`
}

func NewUserSummary(u *models.User) UserSummary {
	return UserSummary{
		ID:         u.ID,
		Name:       u.Name,
		Username:   u.Username,
		Role:       u.Role,
		BusinessID: u.BusinessID,
		IsActive:   u.IsActive,
		LastLogin:  u.LastLogin,
	}
}

// POST /api/auth/login
func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		res, err := Login(database.DB, cfg.JWTSecret, cfg.TokenTTL, LoginInput{
			Username:  body.Username,
			Password:  body.Password,
			UserAgent: c.Get(fiber.HeaderUserAgent),
			IPAddress: c.IP(),
		}, time.Now().UTC())
		if err != nil {
			return err
		}

		return c.JSON(LoginResponse{
			Token:      res.Token,
			SessionID:  res.Session.ID,
			Role:       res.User.Role,
			BusinessID: res.User.BusinessID,
			IsReadOnly: res.Access.ReadOnly,
			User:       NewUserSummary(&res.User),
		})
	}
}

// POST /api/auth/logout
func LogoutHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LogoutRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		closed, err := Logout(database.DB, body.SessionID, time.Now().UTC())
		if err != nil {
			return err
		}
		if !closed {
			return c.JSON(fiber.Map{"message": "Already logged out"})
		}
		return c.JSON(fiber.Map{"message": "Logout successful"})
	}
}

// GET /api/auth/status
func StatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _, err := CurrentUser(c)
		if err != nil {
			return err
		}

		var user models.User
		if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
			return apperror.NotFound("User not found")
		}

		now := time.Now().UTC()
		access, err := EvaluateAccess(database.DB, &user, now)
		if err != nil {
			return err
		}

		resp := fiber.Map{
			"message":    "User active",
			"user":       NewUserSummary(&user),
			"business":   nil,
			"isReadOnly": access.ReadOnly,
		}
		if access.Business != nil {
			resp["business"] = fiber.Map{
				"id":       access.Business.ID,
				"name":     access.Business.Name,
				"owner":    access.Business.Owner,
				"phone":    access.Business.Phone,
				"isActive": access.Business.IsActive,
			}
		}
		if access.Subscription != nil {
			resp["subscription"] = fiber.Map{
				"id":            access.Subscription.ID,
				"type":          access.Subscription.Type,
				"startDate":     access.Subscription.StartDate,
				"endDate":       access.Subscription.EndDate,
				"paymentStatus": access.Subscription.PaymentStatus,
				"daysRemaining": DaysRemaining(access.Subscription, now),
				"isExpired":     now.After(access.Subscription.EndDate),
			}
		}
		return c.JSON(resp)
	}
}

func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _, err := CurrentUser(c)
		if err != nil {
			return err
		}

		var user models.User
		if err := database.DB.Preload("Business").First(&user, "id = ?", userID).Error; err != nil {
			return apperror.NotFound("User not found")
		}

		response := fiber.Map{
			"user":       NewUserSummary(&user),
			"sessionId":  c.Locals(CtxSessionIDKey),
			"isReadOnly": IsReadOnly(c),
		}
		if user.Business != nil {
			response["business"] = fiber.Map{
				"id":    user.Business.ID,
				"name":  user.Business.Name,
				"phone": user.Business.Phone,
			}
		}
		return c.JSON(response)
	}
}
