package sessions

import (
	"time"

	"retail-backend/internal/apperror"
	"retail-backend/internal/audit"
	"retail-backend/internal/auth"
	"retail-backend/internal/database"
	"retail-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type SessionResponse struct {
	ID         string     `json:"id"`
	UserID     uint       `json:"userId"`
	UserName   string     `json:"userName,omitempty"`
	Username   string     `json:"username,omitempty"`
	BusinessID *uint      `json:"businessId,omitempty"`
	LoginTime  time.Time  `json:"loginTime"`
	LogoutTime *time.Time `json:"logoutTime"`
	Duration   int        `json:"duration"`
	UserAgent  string     `json:"userAgent"`
	IPAddress  string     `json:"ipAddress"`
	IsActive   bool       `json:"isActive"`
}

// GET /api/sessions/active
// developer tüm aktif oturumları, admin sadece kendi işletmesindekileri görür.
func ListActiveSessionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		type row struct {
			models.Session
			Name       string
			Username   string
			BusinessID *uint
		}

		dbq := database.DB.Table("sessions").
			Select("sessions.*, users.name AS name, users.username AS username, users.business_id AS business_id").
			Joins("JOIN users ON users.id = sessions.user_id").
			Where("sessions.is_active = ?", true)

		if auth.CurrentRole(c) != models.RoleDeveloper {
			businessID, err := auth.TenantID(c)
			if err != nil {
				return err
			}
			dbq = dbq.Where("users.business_id = ?", businessID)
		}

		var rows []row
		if err := dbq.Order("sessions.login_time DESC").Scan(&rows).Error; err != nil {
			return err
		}

		resp := make([]SessionResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, SessionResponse{
				ID:         r.ID,
				UserID:     r.UserID,
				UserName:   r.Name,
				Username:   r.Username,
				BusinessID: r.BusinessID,
				LoginTime:  r.LoginTime,
				LogoutTime: r.LogoutTime,
				Duration:   r.Duration,
				UserAgent:  r.UserAgent,
				IPAddress:  r.IPAddress,
				IsActive:   r.IsActive,
			})
		}
		return c.JSON(resp)
	}
}

// POST /api/sessions/:id/close
// Oturumu dışarıdan kapatır; ilgili token bir sonraki istekte reddedilir.
func CloseSessionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")

		var session models.Session
		if err := database.DB.First(&session, "id = ?", sessionID).Error; err != nil {
			return apperror.NotFound("Session not found")
		}

		var owner models.User
		if err := database.DB.First(&owner, "id = ?", session.UserID).Error; err != nil {
			return apperror.NotFound("Session not found")
		}

		if auth.CurrentRole(c) != models.RoleDeveloper {
			businessID, err := auth.TenantID(c)
			if err != nil {
				return err
			}
			if owner.BusinessID == nil || *owner.BusinessID != businessID {
				return apperror.NotFound("Session not found")
			}
		}

		closed, err := auth.Logout(database.DB, session.ID, time.Now().UTC())
		if err != nil {
			return err
		}

		if closed {
			userID, userName, _ := auth.CurrentUser(c)
			_ = audit.WriteLog(database.DB, audit.LogOptions{
				BusinessID:  owner.BusinessID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "session",
				EntityID:    session.ID,
				Action:      models.AuditActionClose,
				Description: "Session closed for " + owner.Username,
			})
		}

		return c.JSON(fiber.Map{"message": "Session closed", "closed": closed})
	}
}
