package audit

import (
	"retail-backend/internal/auth"
	"retail-backend/internal/database"
	"retail-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	BusinessID  *uint              `json:"business_id"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    string             `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	BeforeData  any                `json:"before_data"`
	AfterData   any                `json:"after_data"`
}

// GET /api/audit-logs?entity_type=invoice&entity_id=1&user_id=2&limit=100
// admin kendi işletmesinin loglarını, developer ?business_id= ile bir işletmeyi
// ya da parametresiz tüm logları görür.
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.AuditLog{})

		if auth.CurrentRole(c) != models.RoleDeveloper || c.Query("business_id") != "" {
			businessID, err := auth.TenantID(c)
			if err != nil {
				return err
			}
			dbq = dbq.Where("business_id = ?", businessID)
		}

		if userIDStr := c.Query("user_id"); userIDStr != "" {
			if uid, ok := database.ParseID(userIDStr); ok {
				dbq = dbq.Where("user_id = ?", uid)
			}
		}
		if entityType := c.Query("entity_type"); entityType != "" {
			dbq = dbq.Where("entity_type = ?", entityType)
		}
		if entityID := c.Query("entity_id"); entityID != "" {
			dbq = dbq.Where("entity_id = ?", entityID)
		}

		limit := c.QueryInt("limit", 200)
		if limit <= 0 || limit > 1000 {
			limit = 200
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to list audit logs")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
				BusinessID:  l.BusinessID,
				UserID:      l.UserID,
				UserName:    l.UserName,
				EntityType:  l.EntityType,
				EntityID:    l.EntityID,
				Action:      l.Action,
				Description: l.Description,
				BeforeData:  l.BeforeData,
				AfterData:   l.AfterData,
			})
		}

		return c.JSON(resp)
	}
}
