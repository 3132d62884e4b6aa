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

type CreateArticleRequest struct {
	ArticleNo     string  `json:"article_no"`
	Season        string  `json:"season"`
	Size          string  `json:"size"`
	Category      string  `json:"category"`
	Type          string  `json:"type"`
	PurchasePrice float64 `json:"purchase_price"`
	SellingPrice  float64 `json:"selling_price"`
	InitialStock  int     `json:"initial_stock"`
}

// Alanlar opsiyonel; gönderilmeyen alan değişmez.
type UpdateArticleRequest struct {
	ArticleNo     *string  `json:"article_no"`
	Season        *string  `json:"season"`
	Size          *string  `json:"size"`
	Category      *string  `json:"category"`
	Type          *string  `json:"type"`
	PurchasePrice *float64 `json:"purchase_price"`
	SellingPrice  *float64 `json:"selling_price"`
	StockChange   int      `json:"stockChange"`
	StockNote     string   `json:"stockNote"`
}

type ArticleResponse struct {
	ID            uint      `json:"id"`
	BusinessID    uint      `json:"businessId"`
	UserID        uint      `json:"userId"`
	ArticleNo     string    `json:"article_no"`
	Season        string    `json:"season"`
	Size          string    `json:"size"`
	Category      string    `json:"category"`
	Type          string    `json:"type"`
	PurchasePrice float64   `json:"purchase_price"`
	SellingPrice  float64   `json:"selling_price"`
	Stock         int       `json:"stock"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toArticleResponse(a *models.Article, stock int) ArticleResponse {
	return ArticleResponse{
		ID:            a.ID,
		BusinessID:    a.BusinessID,
		UserID:        a.UserID,
		ArticleNo:     a.ArticleNo,
		Season:        a.Season,
		Size:          a.Size,
		Category:      a.Category,
		Type:          a.Type,
		PurchasePrice: a.PurchasePrice,
		SellingPrice:  a.SellingPrice,
		Stock:         stock,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func articleSnapshot(a *models.Article) map[string]interface{} {
	return map[string]interface{}{
		"id":             a.ID,
		"article_no":     a.ArticleNo,
		"season":         a.Season,
		"size":           a.Size,
		"category":       a.Category,
		"type":           a.Type,
		"purchase_price": a.PurchasePrice,
		"selling_price":  a.SellingPrice,
	}
}

var errArticleExists = apperror.Conflict("Article number already exists for this business")

// findArticle: tenant dışındaki artikel bulunamadı sayılır.
func findArticle(db *gorm.DB, businessID uint, idStr string) (*models.Article, error) {
	id, ok := database.ParseID(idStr)
	if !ok {
		return nil, apperror.Validation("Invalid article ID")
	}
	var a models.Article
	if err := db.Where("id = ? AND business_id = ?", id, businessID).First(&a).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("Article not found")
		}
		return nil, err
	}
	return &a, nil
}

// POST /api/articles
func CreateArticleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateArticleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.ArticleNo = strings.TrimSpace(body.ArticleNo)
		if body.ArticleNo == "" || strings.TrimSpace(body.Season) == "" ||
			strings.TrimSpace(body.Size) == "" || strings.TrimSpace(body.Category) == "" {
			return apperror.Validation("article_no, season, size and category are required")
		}
		if body.PurchasePrice < 0 || body.SellingPrice < 0 {
			return apperror.Validation("Prices cannot be negative")
		}
		if body.InitialStock < 0 {
			return apperror.Validation("initial_stock cannot be negative")
		}

		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}
		userID, userName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		article := models.Article{
			BusinessID:    businessID,
			UserID:        userID,
			ArticleNo:     body.ArticleNo,
			Season:        body.Season,
			Size:          body.Size,
			Category:      body.Category,
			Type:          body.Type,
			PurchasePrice: body.PurchasePrice,
			SellingPrice:  body.SellingPrice,
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&article).Error; err != nil {
				if database.IsUniqueViolation(err) {
					return errArticleExists
				}
				return err
			}
			if body.InitialStock > 0 {
				if err := tx.Create(&models.ArticleStock{
					ArticleID:  article.ID,
					BusinessID: businessID,
					UserID:     userID,
					Quantity:   body.InitialStock,
					Type:       models.MovementIn,
					Note:       "Initial stock",
				}).Error; err != nil {
					return err
				}
			}
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &businessID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "article",
				EntityID:    audit.ID(article.ID),
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Article created: %s (initial stock %d)", article.ArticleNo, body.InitialStock),
				After:       articleSnapshot(&article),
			})
		})
		if err != nil {
			return err
		}

		stock, err := ledger.CurrentStock(database.DB, businessID, article.ID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toArticleResponse(&article, stock))
	}
}

// GET /api/articles?category=&season=&q=
func ListArticlesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.Article{}).Where("business_id = ?", businessID)
		if s := c.Query("category"); s != "" {
			dbq = dbq.Where("category = ?", s)
		}
		if s := c.Query("season"); s != "" {
			dbq = dbq.Where("season = ?", s)
		}
		if s := strings.TrimSpace(c.Query("q")); s != "" {
			dbq = dbq.Where("article_no LIKE ?", "%"+s+"%")
		}

		var articles []models.Article
		if err := dbq.Order("article_no").Find(&articles).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to list articles")
		}

		ids := make([]uint, 0, len(articles))
		for _, a := range articles {
			ids = append(ids, a.ID)
		}
		levels, err := ledger.StockLevels(database.DB, businessID, ids)
		if err != nil {
			return err
		}

		resp := make([]ArticleResponse, 0, len(articles))
		for i := range articles {
			resp = append(resp, toArticleResponse(&articles[i], levels[articles[i].ID]))
		}
		return c.JSON(resp)
	}
}

// GET /api/articles/:id
func GetArticleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}

		article, err := findArticle(database.DB, businessID, c.Params("id"))
		if err != nil {
			return err
		}

		stock, err := ledger.CurrentStock(database.DB, businessID, article.ID)
		if err != nil {
			return err
		}
		return c.JSON(toArticleResponse(article, stock))
	}
}

// PUT /api/articles/:id
// Alan güncellemesi ve opsiyonel işaretli stok hareketi aynı transaction'da,
// artikel satırı kilitliyken yapılır; eşzamanlı fatura ile sıraya girer.
func UpdateArticleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateArticleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}
		userID, userName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var article *models.Article
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			a, err := findArticle(tx.Clauses(clause.Locking{Strength: "UPDATE"}), businessID, c.Params("id"))
			if err != nil {
				return err
			}
			before := articleSnapshot(a)

			updates := map[string]interface{}{}
			if body.ArticleNo != nil {
				no := strings.TrimSpace(*body.ArticleNo)
				if no == "" {
					return apperror.Validation("article_no cannot be empty")
				}
				updates["article_no"] = no
			}
			if body.Season != nil {
				updates["season"] = *body.Season
			}
			if body.Size != nil {
				updates["size"] = *body.Size
			}
			if body.Category != nil {
				updates["category"] = *body.Category
			}
			if body.Type != nil {
				updates["type"] = *body.Type
			}
			if body.PurchasePrice != nil {
				if *body.PurchasePrice < 0 {
					return apperror.Validation("Prices cannot be negative")
				}
				updates["purchase_price"] = *body.PurchasePrice
			}
			if body.SellingPrice != nil {
				if *body.SellingPrice < 0 {
					return apperror.Validation("Prices cannot be negative")
				}
				updates["selling_price"] = *body.SellingPrice
			}

			if len(updates) > 0 {
				if err := tx.Model(a).Updates(updates).Error; err != nil {
					if database.IsUniqueViolation(err) {
						return errArticleExists
					}
					return err
				}
			}

			if body.StockChange != 0 {
				note := strings.TrimSpace(body.StockNote)
				if note == "" {
					note = "Stock update"
				}
				if err := tx.Create(&models.ArticleStock{
					ArticleID:  a.ID,
					BusinessID: businessID,
					UserID:     userID,
					Quantity:   body.StockChange,
					Type:       models.MovementTypeFor(body.StockChange),
					Note:       note,
				}).Error; err != nil {
					return err
				}
			}

			if err := tx.First(a, "id = ?", a.ID).Error; err != nil {
				return err
			}
			article = a

			desc := fmt.Sprintf("Article updated: %s", a.ArticleNo)
			if body.StockChange != 0 {
				desc = fmt.Sprintf("%s (stock %+d)", desc, body.StockChange)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &businessID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "article",
				EntityID:    audit.ID(a.ID),
				Action:      models.AuditActionUpdate,
				Description: desc,
				Before:      before,
				After:       articleSnapshot(a),
			})
		})
		if err != nil {
			return err
		}

		stock, err := ledger.CurrentStock(database.DB, businessID, article.ID)
		if err != nil {
			return err
		}
		return c.JSON(toArticleResponse(article, stock))
	}
}

// DELETE /api/articles/:id
// Hareketi veya satışı olan artikel silinmez; geçmiş faturalar artikele bağlı kalır.
func DeleteArticleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}
		userID, userName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			a, err := findArticle(tx.Clauses(clause.Locking{Strength: "UPDATE"}), businessID, c.Params("id"))
			if err != nil {
				return err
			}

			var movements, sold int64
			if err := tx.Model(&models.ArticleStock{}).Where("article_id = ?", a.ID).Count(&movements).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.InvoiceItem{}).Where("article_id = ?", a.ID).Count(&sold).Error; err != nil {
				return err
			}
			if movements > 0 || sold > 0 {
				return apperror.New(apperror.ErrConflict, apperror.CodeReferenced,
					"Article has stock movements or sales and cannot be deleted")
			}

			if err := tx.Delete(&models.Article{}, "id = ?", a.ID).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &businessID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "article",
				EntityID:    audit.ID(a.ID),
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Article deleted: %s", a.ArticleNo),
				Before:      articleSnapshot(a),
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Article deleted"})
	}
}
