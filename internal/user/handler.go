package user

import (
	"fmt"
	"strings"
	"time"

	"retail-backend/internal/apperror"
	"retail-backend/internal/audit"
	"retail-backend/internal/auth"
	"retail-backend/internal/database"
	"retail-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

type CreateUserRequest struct {
	Name       string          `json:"name"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	Role       models.UserRole `json:"role"`
	BusinessID *uint           `json:"businessId"` // sadece developer için
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// scope: admin için kendi işletmesi, developer için nil (hepsi).
func scope(c *fiber.Ctx) (*uint, error) {
	if auth.CurrentRole(c) == models.RoleDeveloper {
		return nil, nil
	}
	bid, err := auth.TenantID(c)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func findUser(db *gorm.DB, businessID *uint, idStr string) (*models.User, error) {
	id, ok := database.ParseID(idStr)
	if !ok {
		return nil, apperror.Validation("Invalid user ID")
	}
	q := db.Where("id = ?", id)
	if businessID != nil {
		q = q.Where("business_id = ?", *businessID)
	}
	var u models.User
	if err := q.First(&u).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, err
	}
	return &u, nil
}

// POST /api/users
func CreateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Username = strings.TrimSpace(body.Username)
		if body.Name == "" || body.Username == "" {
			return apperror.Validation("name and username are required")
		}
		if len(body.Password) < minPasswordLength {
			return apperror.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		}
		if body.Role == "" {
			body.Role = models.RoleUser
		}
		if !body.Role.Valid() {
			return apperror.Validation("role must be developer, admin or user")
		}

		actorID, actorName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var businessID *uint
		if auth.CurrentRole(c) == models.RoleDeveloper {
			if body.Role == models.RoleDeveloper {
				businessID = nil
			} else {
				if body.BusinessID == nil || *body.BusinessID == 0 {
					return apperror.Validation("businessId is required for admin and user roles")
				}
				var count int64
				if err := database.DB.Model(&models.Business{}).Where("id = ?", *body.BusinessID).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return apperror.NotFound("Business not found")
				}
				businessID = body.BusinessID
			}
		} else {
			// admin kendi işletmesine sadece admin/user ekleyebilir.
			if body.Role == models.RoleDeveloper {
				return apperror.Forbidden(apperror.CodeForbidden, "You are not allowed to create developer accounts")
			}
			bid, err := auth.TenantID(c)
			if err != nil {
				return err
			}
			businessID = &bid
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		u := models.User{
			BusinessID:   businessID,
			Name:         body.Name,
			Username:     body.Username,
			PasswordHash: string(hash),
			Role:         body.Role,
			IsActive:     true,
		}
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&u).Error; err != nil {
				if database.IsUniqueViolation(err) {
					return apperror.Conflict("Username already exists")
				}
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  businessID,
				UserID:      actorID,
				UserName:    actorName,
				EntityType:  "user",
				EntityID:    audit.ID(u.ID),
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("User created: %s (%s)", u.Username, u.Role),
				After: map[string]interface{}{
					"username":    u.Username,
					"name":        u.Name,
					"role":        u.Role,
					"business_id": u.BusinessID,
				},
			})
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(auth.NewUserSummary(&u))
	}
}

// GET /api/users?business_id=
func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := scope(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.User{})
		if businessID != nil {
			dbq = dbq.Where("business_id = ?", *businessID)
		} else if s := c.Query("business_id"); s != "" {
			bid, ok := database.ParseID(s)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "business_id is invalid")
			}
			dbq = dbq.Where("business_id = ?", bid)
		}

		var users []models.User
		if err := dbq.Order("created_at DESC, id DESC").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to list users")
		}

		res := make([]auth.UserSummary, 0, len(users))
		for i := range users {
			res = append(res, auth.NewUserSummary(&users[i]))
		}
		return c.JSON(res)
	}
}

// GET /api/users/:id
func GetUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := scope(c)
		if err != nil {
			return err
		}
		u, err := findUser(database.DB, businessID, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(auth.NewUserSummary(u))
	}
}

// PATCH /api/users/:id/toggle
// Pasife alınan kullanıcının açık oturumu kapatılır.
func ToggleUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := scope(c)
		if err != nil {
			return err
		}
		actorID, actorName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var target *models.User
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			u, err := findUser(tx, businessID, c.Params("id"))
			if err != nil {
				return err
			}
			if u.ID == actorID {
				return apperror.Validation("You cannot change your own status")
			}
			u.IsActive = !u.IsActive
			if err := tx.Model(&models.User{}).Where("id = ?", u.ID).Update("is_active", u.IsActive).Error; err != nil {
				return err
			}
			if !u.IsActive {
				if _, err := auth.CloseUserSessions(tx, u.ID, time.Now().UTC()); err != nil {
					return err
				}
			}
			target = u

			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  u.BusinessID,
				UserID:      actorID,
				UserName:    actorName,
				EntityType:  "user",
				EntityID:    audit.ID(u.ID),
				Action:      models.AuditActionToggle,
				Description: fmt.Sprintf("User %s active=%t", u.Username, u.IsActive),
			})
		})
		if err != nil {
			return err
		}

		return c.JSON(auth.NewUserSummary(target))
	}
}

// PUT /api/users/:id/password
func ResetPasswordHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ResetPasswordRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if len(body.Password) < minPasswordLength {
			return apperror.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		}

		businessID, err := scope(c)
		if err != nil {
			return err
		}
		actorID, actorName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			u, err := findUser(tx, businessID, c.Params("id"))
			if err != nil {
				return err
			}
			if err := tx.Model(&models.User{}).Where("id = ?", u.ID).Update("password_hash", string(hash)).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  u.BusinessID,
				UserID:      actorID,
				UserName:    actorName,
				EntityType:  "user",
				EntityID:    audit.ID(u.ID),
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Password reset for %s", u.Username),
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Password updated"})
	}
}
