package customer

import (
	"fmt"
	"regexp"
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
)

var phonePattern = regexp.MustCompile(`^[0-9]{10,15}$`)

var errCustomerExists = apperror.Conflict("A customer with this name or phone number already exists")

type CustomerRequest struct {
	Name       *string `json:"name"`
	PersonName *string `json:"person_name"`
	Phone      *string `json:"phone_no"`
	Address    *string `json:"address"`
}

type StatementRequest struct {
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

type CustomerResponse struct {
	ID            uint      `json:"id"`
	BusinessID    uint      `json:"businessId"`
	UserID        uint      `json:"userId"`
	Name          string    `json:"name"`
	PersonName    string    `json:"person_name"`
	Phone         string    `json:"phone_no"`
	Address       string    `json:"address"`
	IsActive      bool      `json:"isActive"`
	TotalInvoices float64   `json:"totalInvoices"`
	TotalPayments float64   `json:"totalPayments"`
	Balance       float64   `json:"balance"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toResponse(cu *models.Customer, b ledger.Balance) CustomerResponse {
	return CustomerResponse{
		ID:            cu.ID,
		BusinessID:    cu.BusinessID,
		UserID:        cu.UserID,
		Name:          cu.Name,
		PersonName:    cu.PersonName,
		Phone:         cu.Phone,
		Address:       cu.Address,
		IsActive:      cu.IsActive,
		TotalInvoices: b.TotalInvoices,
		TotalPayments: b.TotalPayments,
		Balance:       b.Balance,
		CreatedAt:     cu.CreatedAt,
	}
}

func snapshot(cu *models.Customer) map[string]interface{} {
	return map[string]interface{}{
		"id":          cu.ID,
		"name":        cu.Name,
		"person_name": cu.PersonName,
		"phone_no":    cu.Phone,
		"address":     cu.Address,
		"is_active":   cu.IsActive,
	}
}

// Find: tenant içindeki müşteri; başka işletmeninki bulunamadı döner.
func Find(db *gorm.DB, businessID uint, idStr string) (*models.Customer, error) {
	id, ok := database.ParseID(idStr)
	if !ok {
		return nil, apperror.Validation("Invalid customer ID")
	}
	var cu models.Customer
	if err := db.Where("id = ? AND business_id = ?", id, businessID).First(&cu).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("Customer not found")
		}
		return nil, err
	}
	return &cu, nil
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// POST /api/customers
func CreateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CustomerRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		name, person, phone := trimmed(body.Name), trimmed(body.PersonName), trimmed(body.Phone)
		if name == "" {
			return apperror.Validation("Customer name is required")
		}
		if person == "" {
			return apperror.Validation("Person name is required")
		}
		if !phonePattern.MatchString(phone) {
			return apperror.Validation("Invalid phone number format")
		}

		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}
		userID, userName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		cu := models.Customer{
			BusinessID: businessID,
			UserID:     userID,
			Name:       name,
			PersonName: person,
			Phone:      phone,
			Address:    trimmed(body.Address),
			IsActive:   true,
		}
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&cu).Error; err != nil {
				if database.IsUniqueViolation(err) {
					return errCustomerExists
				}
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &businessID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "customer",
				EntityID:    audit.ID(cu.ID),
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Customer created: %s", cu.Name),
				After:       snapshot(&cu),
			})
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(toResponse(&cu, ledger.Balance{}))
	}
}

// GET /api/customers?active=true&q=
func ListCustomersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.Customer{}).Where("business_id = ?", businessID)
		if s := c.Query("active"); s != "" {
			dbq = dbq.Where("is_active = ?", s == "true" || s == "1")
		}
		if s := strings.TrimSpace(c.Query("q")); s != "" {
			like := "%" + s + "%"
			dbq = dbq.Where("name LIKE ? OR person_name LIKE ? OR phone LIKE ?", like, like, like)
		}

		var rows []models.Customer
		if err := dbq.Order("name").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to list customers")
		}

		balances, err := ledger.CustomerBalances(database.DB, businessID)
		if err != nil {
			return err
		}

		resp := make([]CustomerResponse, 0, len(rows))
		for i := range rows {
			resp = append(resp, toResponse(&rows[i], balances[rows[i].ID]))
		}
		return c.JSON(resp)
	}
}

// GET /api/customers/:id
func GetCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}

		cu, err := Find(database.DB, businessID, c.Params("id"))
		if err != nil {
			return err
		}
		b, err := ledger.CustomerBalance(database.DB, businessID, cu.ID)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(cu, b))
	}
}

// PUT /api/customers/:id
func UpdateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CustomerRequest
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

		var cu *models.Customer
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			found, err := Find(tx, businessID, c.Params("id"))
			if err != nil {
				return err
			}
			before := snapshot(found)

			updates := map[string]interface{}{}
			if body.Name != nil {
				if trimmed(body.Name) == "" {
					return apperror.Validation("Customer name is required")
				}
				updates["name"] = trimmed(body.Name)
			}
			if body.PersonName != nil {
				if trimmed(body.PersonName) == "" {
					return apperror.Validation("Person name is required")
				}
				updates["person_name"] = trimmed(body.PersonName)
			}
			if body.Phone != nil {
				if !phonePattern.MatchString(trimmed(body.Phone)) {
					return apperror.Validation("Invalid phone number format")
				}
				updates["phone"] = trimmed(body.Phone)
			}
			if body.Address != nil {
				updates["address"] = trimmed(body.Address)
			}
			if len(updates) == 0 {
				return apperror.Validation("No fields to update")
			}

			if err := tx.Model(found).Updates(updates).Error; err != nil {
				if database.IsUniqueViolation(err) {
					return errCustomerExists
				}
				return err
			}
			cu = found

			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &businessID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "customer",
				EntityID:    audit.ID(found.ID),
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Customer updated: %s", found.Name),
				Before:      before,
				After:       snapshot(found),
			})
		})
		if err != nil {
			return err
		}

		b, err := ledger.CustomerBalance(database.DB, businessID, cu.ID)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(cu, b))
	}
}

// PATCH /api/customers/:id/toggle
func ToggleCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}
		userID, userName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		cu, err := Find(database.DB, businessID, c.Params("id"))
		if err != nil {
			return err
		}

		next := !cu.IsActive
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(cu).Update("is_active", next).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &businessID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "customer",
				EntityID:    audit.ID(cu.ID),
				Action:      models.AuditActionToggle,
				Description: fmt.Sprintf("Customer %s active=%t", cu.Name, next),
			})
		})
		if err != nil {
			return err
		}

		status := "Inactive"
		if next {
			status = "Active"
		}
		return c.JSON(fiber.Map{
			"message":  fmt.Sprintf("Customer is now %s", status),
			"isActive": next,
		})
	}
}

// DELETE /api/customers/:id
// Faturası veya ödemesi olan müşteri silinmez; ekstre geçmişi bozulmasın.
func DeleteCustomerHandler() fiber.Handler {
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
			cu, err := Find(tx, businessID, c.Params("id"))
			if err != nil {
				return err
			}

			var invoices, payments int64
			if err := tx.Model(&models.Invoice{}).Where("customer_id = ?", cu.ID).Count(&invoices).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Payment{}).Where("customer_id = ?", cu.ID).Count(&payments).Error; err != nil {
				return err
			}
			if invoices > 0 || payments > 0 {
				return apperror.New(apperror.ErrConflict, apperror.CodeReferenced,
					"Customer has invoices or payments and cannot be deleted")
			}

			if err := tx.Delete(&models.Customer{}, "id = ?", cu.ID).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &businessID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "customer",
				EntityID:    audit.ID(cu.ID),
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Customer deleted: %s", cu.Name),
				Before:      snapshot(cu),
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Customer deleted successfully"})
	}
}

// PATCH /api/customers/:id/statement
// Gövde: {"date_from": "2025-01-01", "date_to": "2025-01-31"}; ikisi de opsiyonel.
func StatementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body StatementRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
			}
		}

		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}

		cu, err := Find(database.DB, businessID, c.Params("id"))
		if err != nil {
			return err
		}

		var from, to *time.Time
		if body.DateFrom != "" {
			d, err := time.Parse("2006-01-02", body.DateFrom)
			if err != nil {
				return apperror.Validation("date_from must be in 'YYYY-MM-DD' format")
			}
			from = &d
		}
		if body.DateTo != "" {
			d, err := time.Parse("2006-01-02", body.DateTo)
			if err != nil {
				return apperror.Validation("date_to must be in 'YYYY-MM-DD' format")
			}
			to = &d
		}
		if from != nil && to != nil && to.Before(*from) {
			return apperror.Validation("date_to cannot be before date_from")
		}

		st, err := ledger.Statement(database.DB, businessID, cu.ID, from, to, time.Now().UTC())
		if err != nil {
			return err
		}

		b, err := ledger.CustomerBalance(database.DB, businessID, cu.ID)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"customer":  toResponse(cu, b),
			"statement": st,
		})
	}
}
