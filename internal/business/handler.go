package business

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

var (
	errUsernameTaken = apperror.Conflict("Username already exists")
	errPhoneTaken    = apperror.Conflict("Phone number already exists")
)

type CreateBusinessRequest struct {
	Name             string  `json:"name"`
	Owner            string  `json:"owner"`
	Username         string  `json:"username"`
	Password         string  `json:"password"`
	Phone            string  `json:"phone_no"`
	RegistrationDate string  `json:"registration_date"`
	Type             string  `json:"type"`
	Price            float64 `json:"price"`
}

type UpdateBusinessRequest struct {
	Name     *string  `json:"name"`
	Owner    *string  `json:"owner"`
	Phone    *string  `json:"phone_no"`
	Type     *string  `json:"type"`
	Price    *float64 `json:"price"`
	Username *string  `json:"username"`
	Password *string  `json:"password"`
}

type OwnerSummary struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type BusinessResponse struct {
	ID               uint                    `json:"id"`
	Name             string                  `json:"name"`
	Owner            string                  `json:"owner"`
	Phone            string                  `json:"phone_no"`
	RegistrationDate string                  `json:"registration_date"`
	Type             models.SubscriptionType `json:"type"`
	Price            float64                 `json:"price"`
	IsActive         bool                    `json:"isActive"`
	User             *OwnerSummary           `json:"user"`
	CreatedAt        string                  `json:"created_at"`
}

func toResponse(b *models.Business, owner *models.User) BusinessResponse {
	resp := BusinessResponse{
		ID:               b.ID,
		Name:             b.Name,
		Owner:            b.Owner,
		Phone:            b.Phone,
		RegistrationDate: b.RegistrationDate.Format("2006-01-02"),
		Type:             b.Type,
		Price:            b.Price,
		IsActive:         b.IsActive,
		CreatedAt:        b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if owner != nil {
		resp.User = &OwnerSummary{ID: owner.ID, Name: owner.Name, Username: owner.Username}
	}
	return resp
}

func snapshot(b *models.Business) map[string]interface{} {
	return map[string]interface{}{
		"id":        b.ID,
		"name":      b.Name,
		"owner":     b.Owner,
		"phone_no":  b.Phone,
		"type":      b.Type,
		"price":     b.Price,
		"is_active": b.IsActive,
	}
}

func findBusiness(db *gorm.DB, idStr string) (*models.Business, error) {
	id, ok := database.ParseID(idStr)
	if !ok {
		return nil, apperror.Validation("Invalid business ID")
	}
	var b models.Business
	if err := db.First(&b, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("Business not found")
		}
		return nil, err
	}
	return &b, nil
}

func loadOwner(db *gorm.DB, b *models.Business) *models.User {
	if b.UserID == 0 {
		return nil
	}
	var u models.User
	if err := db.First(&u, "id = ?", b.UserID).Error; err != nil {
		return nil
	}
	return &u
}

// ----------------------------------------
// İŞLETME CRUD (developer)
// ----------------------------------------

// POST /api/businesses
// İşletme ve sahibi olan admin kullanıcı tek transaction'da oluşturulur.
func CreateBusinessHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBusinessRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Owner = strings.TrimSpace(body.Owner)
		body.Username = strings.TrimSpace(body.Username)
		body.Phone = strings.TrimSpace(body.Phone)
		if body.Name == "" || body.Owner == "" || body.Username == "" || body.Phone == "" {
			return apperror.Validation("name, owner, username and phone_no are required")
		}
		if len(body.Password) < minPasswordLength {
			return apperror.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		}
		typ := models.SubscriptionType(body.Type)
		if !typ.Valid() {
			return apperror.Validation("type must be monthly or yearly")
		}
		if body.Price < 1 {
			return apperror.Validation("price must be at least 1")
		}

		regDate := time.Now().UTC()
		if body.RegistrationDate != "" {
			d, err := time.Parse("2006-01-02", body.RegistrationDate)
			if err != nil {
				return apperror.Validation("registration_date must be in 'YYYY-MM-DD' format")
			}
			regDate = d
		}

		actorID, actorName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		var business models.Business
		var owner models.User
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.User{}).Where("username = ?", body.Username).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return errUsernameTaken
			}
			if err := tx.Model(&models.Business{}).Where("phone = ?", body.Phone).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return errPhoneTaken
			}

			owner = models.User{
				Name:         body.Owner,
				Username:     body.Username,
				PasswordHash: string(hash),
				Role:         models.RoleAdmin,
				IsActive:     true,
			}
			if err := tx.Create(&owner).Error; err != nil {
				return err
			}

			business = models.Business{
				Name:             body.Name,
				Owner:            body.Owner,
				Phone:            body.Phone,
				RegistrationDate: regDate,
				Type:             typ,
				Price:            body.Price,
				UserID:           owner.ID,
				IsActive:         true,
			}
			if err := tx.Create(&business).Error; err != nil {
				return err
			}

			owner.BusinessID = &business.ID
			if err := tx.Model(&owner).Update("business_id", business.ID).Error; err != nil {
				return err
			}

			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &business.ID,
				UserID:      actorID,
				UserName:    actorName,
				EntityType:  "business",
				EntityID:    audit.ID(business.ID),
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Business created: %s (owner %s)", business.Name, owner.Username),
				After:       snapshot(&business),
			})
		})
		if err != nil {
			if database.IsUniqueViolation(err) {
				return apperror.Conflict("Username or phone number already exists")
			}
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(toResponse(&business, &owner))
	}
}

// GET /api/businesses
func ListBusinessesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var businesses []models.Business
		if err := database.DB.Order("created_at DESC, id DESC").Find(&businesses).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to list businesses")
		}

		ownerIDs := make([]uint, 0, len(businesses))
		for _, b := range businesses {
			ownerIDs = append(ownerIDs, b.UserID)
		}
		var owners []models.User
		if len(ownerIDs) > 0 {
			if err := database.DB.Where("id IN ?", ownerIDs).Find(&owners).Error; err != nil {
				return err
			}
		}
		byID := make(map[uint]*models.User, len(owners))
		for i := range owners {
			byID[owners[i].ID] = &owners[i]
		}

		res := make([]BusinessResponse, 0, len(businesses))
		for i := range businesses {
			res = append(res, toResponse(&businesses[i], byID[businesses[i].UserID]))
		}
		return c.JSON(res)
	}
}

// GET /api/businesses/:id
func GetBusinessHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := findBusiness(database.DB, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(toResponse(b, loadOwner(database.DB, b)))
	}
}

// PUT /api/businesses/:id
// username/password verilirse sahip kullanıcı da güncellenir.
func UpdateBusinessHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateBusinessRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		actorID, actorName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var business *models.Business
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			b, err := findBusiness(tx, c.Params("id"))
			if err != nil {
				return err
			}
			before := snapshot(b)

			updates := map[string]interface{}{}
			if body.Name != nil {
				if strings.TrimSpace(*body.Name) == "" {
					return apperror.Validation("name cannot be empty")
				}
				updates["name"] = strings.TrimSpace(*body.Name)
			}
			if body.Owner != nil {
				if strings.TrimSpace(*body.Owner) == "" {
					return apperror.Validation("owner cannot be empty")
				}
				updates["owner"] = strings.TrimSpace(*body.Owner)
			}
			if body.Phone != nil {
				phone := strings.TrimSpace(*body.Phone)
				if phone == "" {
					return apperror.Validation("phone_no cannot be empty")
				}
				var count int64
				if err := tx.Model(&models.Business{}).Where("phone = ? AND id <> ?", phone, b.ID).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					return errPhoneTaken
				}
				updates["phone"] = phone
			}
			if body.Type != nil {
				typ := models.SubscriptionType(*body.Type)
				if !typ.Valid() {
					return apperror.Validation("type must be monthly or yearly")
				}
				updates["type"] = typ
			}
			if body.Price != nil {
				if *body.Price < 1 {
					return apperror.Validation("price must be at least 1")
				}
				updates["price"] = *body.Price
			}
			if len(updates) > 0 {
				if err := tx.Model(b).Updates(updates).Error; err != nil {
					return err
				}
			}

			ownerUpdates := map[string]interface{}{}
			if body.Username != nil {
				username := strings.TrimSpace(*body.Username)
				if username == "" {
					return apperror.Validation("username cannot be empty")
				}
				var count int64
				if err := tx.Model(&models.User{}).Where("username = ? AND id <> ?", username, b.UserID).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					return errUsernameTaken
				}
				ownerUpdates["username"] = username
			}
			if body.Password != nil {
				if len(*body.Password) < minPasswordLength {
					return apperror.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
				}
				hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
				if err != nil {
					return err
				}
				ownerUpdates["password_hash"] = string(hash)
			}
			if len(ownerUpdates) > 0 {
				if err := tx.Model(&models.User{}).Where("id = ?", b.UserID).Updates(ownerUpdates).Error; err != nil {
					return err
				}
			}

			if err := tx.First(b, "id = ?", b.ID).Error; err != nil {
				return err
			}
			business = b

			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &b.ID,
				UserID:      actorID,
				UserName:    actorName,
				EntityType:  "business",
				EntityID:    audit.ID(b.ID),
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Business updated: %s", b.Name),
				Before:      before,
				After:       snapshot(b),
			})
		})
		if err != nil {
			if database.IsUniqueViolation(err) {
				return apperror.Conflict("Username or phone number already exists")
			}
			return err
		}

		return c.JSON(toResponse(business, loadOwner(database.DB, business)))
	}
}

// PATCH /api/businesses/:id/toggle
// Pasife alınan işletmenin açık oturumları kapatılır.
func ToggleBusinessHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actorID, actorName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var business *models.Business
		closed := 0
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			b, err := findBusiness(tx, c.Params("id"))
			if err != nil {
				return err
			}
			b.IsActive = !b.IsActive
			if err := tx.Model(&models.Business{}).Where("id = ?", b.ID).Update("is_active", b.IsActive).Error; err != nil {
				return err
			}
			if !b.IsActive {
				if closed, err = auth.CloseBusinessSessions(tx, b.ID, time.Now().UTC()); err != nil {
					return err
				}
			}
			business = b

			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &b.ID,
				UserID:      actorID,
				UserName:    actorName,
				EntityType:  "business",
				EntityID:    audit.ID(b.ID),
				Action:      models.AuditActionToggle,
				Description: fmt.Sprintf("Business %s active=%t", b.Name, b.IsActive),
			})
		})
		if err != nil {
			return err
		}

		status := "Inactive"
		if business.IsActive {
			status = "Active"
		}
		return c.JSON(fiber.Map{
			"message":        fmt.Sprintf("Business is now %s", status),
			"business":       toResponse(business, nil),
			"closedSessions": closed,
		})
	}
}

// DELETE /api/businesses/:id
// İşletmenin bütün verisi tek transaction'da silinir. Audit kayıtları kalır.
func DeleteBusinessHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actorID, actorName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			b, err := findBusiness(tx, c.Params("id"))
			if err != nil {
				return err
			}
			if err := PurgeTenant(tx, b.ID); err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &b.ID,
				UserID:      actorID,
				UserName:    actorName,
				EntityType:  "business",
				EntityID:    audit.ID(b.ID),
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Business deleted with all data: %s", b.Name),
				Before:      snapshot(b),
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Business and linked data deleted successfully"})
	}
}

// PurgeTenant: bağımlı tablolardan başlayarak işletmenin bütün kayıtlarını siler.
func PurgeTenant(tx *gorm.DB, businessID uint) error {
	invoiceIDs := tx.Model(&models.Invoice{}).Select("id").Where("business_id = ?", businessID)
	userIDs := tx.Model(&models.User{}).Select("id").Where("business_id = ?", businessID)

	steps := []struct {
		model any
		where string
		arg   any
	}{
		{&models.InvoiceItem{}, "invoice_id IN (?)", invoiceIDs},
		{&models.Invoice{}, "business_id = ?", businessID},
		{&models.InvoiceCounter{}, "business_id = ?", businessID},
		{&models.Payment{}, "business_id = ?", businessID},
		{&models.ArticleStock{}, "business_id = ?", businessID},
		{&models.Article{}, "business_id = ?", businessID},
		{&models.Customer{}, "business_id = ?", businessID},
		{&models.Subscription{}, "business_id = ?", businessID},
		{&models.Session{}, "user_id IN (?)", userIDs},
		{&models.User{}, "business_id = ?", businessID},
		{&models.Business{}, "id = ?", businessID},
	}
	for _, s := range steps {
		if err := tx.Where(s.where, s.arg).Delete(s.model).Error; err != nil {
			return err
		}
	}
	return nil
}
