package inventory

import (
	"fmt"
	"strings"
	"time"

	"retail-backend/internal/apperror"
	"retail-backend/internal/audit"
	"retail-backend/internal/auth"
	"retail-backend/internal/database"
	"retail-backend/internal/ledger"
	"retail-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AddStockRequest struct {
	ArticleID uint   `json:"articleId"`
	Quantity  int    `json:"quantity"`
	Note      string `json:"note"`
}

type MovementResponse struct {
	ID        uint                `json:"id"`
	ArticleID uint                `json:"articleId"`
	UserID    uint                `json:"userId"`
	Quantity  int                 `json:"quantity"`
	Type      models.MovementType `json:"type"`
	Note      string              `json:"note"`
	CreatedAt time.Time           `json:"createdAt"`
}

// POST /api/articles/add-stock
// Sadece pozitif "in" hareketi ekler.
func AddStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body AddStockRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if body.ArticleID == 0 || body.Quantity <= 0 {
			return apperror.Validation("articleId and a positive quantity are required")
		}

		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}
		userID, userName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		note := strings.TrimSpace(body.Note)
		if note == "" {
			note = "add stock"
		}

		movement := models.ArticleStock{
			BusinessID: businessID,
			UserID:     userID,
			Quantity:   body.Quantity,
			Type:       models.MovementIn,
			Note:       note,
		}
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			a, err := findArticle(tx.Clauses(clause.Locking{Strength: "UPDATE"}), businessID, fmt.Sprint(body.ArticleID))
			if err != nil {
				return err
			}
			movement.ArticleID = a.ID
			if err := tx.Create(&movement).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &businessID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "article_stock",
				EntityID:    audit.ID(movement.ID),
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Stock added to %s: +%d", a.ArticleNo, movement.Quantity),
				After: map[string]interface{}{
					"article_id": a.ID,
					"quantity":   movement.Quantity,
					"note":       movement.Note,
				},
			})
		})
		if err != nil {
			return err
		}

		stock, err := ledger.CurrentStock(database.DB, businessID, movement.ArticleID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message":  "Stock added successfully.",
			"movement": toMovementResponse(&movement),
			"stock":    stock,
		})
	}
}

// GET /api/articles/:id/movements
func ListMovementsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}

		article, err := findArticle(database.DB, businessID, c.Params("id"))
		if err != nil {
			return err
		}

		var rows []models.ArticleStock
		if err := database.DB.
			Where("business_id = ? AND article_id = ?", businessID, article.ID).
			Order("created_at DESC, id DESC").
			Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to list stock movements")
		}

		var sold int64
		if err := database.DB.Table("invoice_items").
			Select("COALESCE(SUM(invoice_items.quantity), 0)").
			Joins("JOIN invoices ON invoices.id = invoice_items.invoice_id").
			Where("invoices.business_id = ? AND invoice_items.article_id = ?", businessID, article.ID).
			Scan(&sold).Error; err != nil {
			return err
		}

		stock, err := ledger.CurrentStock(database.DB, businessID, article.ID)
		if err != nil {
			return err
		}

		resp := make([]MovementResponse, 0, len(rows))
		for i := range rows {
			resp = append(resp, toMovementResponse(&rows[i]))
		}
		return c.JSON(fiber.Map{
			"article":   toArticleResponse(article, stock),
			"movements": resp,
			"sold":      sold,
		})
	}
}

func toMovementResponse(m *models.ArticleStock) MovementResponse {
	return MovementResponse{
		ID:        m.ID,
		ArticleID: m.ArticleID,
		UserID:    m.UserID,
		Quantity:  m.Quantity,
		Type:      m.Type,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
	}
}
