// Package subscription manages the billing periods that gate tenant write access.
package subscription

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
	"gorm.io/gorm"
)

type CreateSubscriptionRequest struct {
	BusinessID    uint    `json:"businessId"`
	Type          string  `json:"type"`
	Price         float64 `json:"price"`
	PaymentStatus string  `json:"paymentStatus"`
	StartDate     string  `json:"startDate"`
}

type UpdateSubscriptionRequest struct {
	Type          *string  `json:"type"`
	Price         *float64 `json:"price"`
	PaymentStatus *string  `json:"paymentStatus"`
	StartDate     *string  `json:"startDate"`
	EndDate       *string  `json:"endDate"`
}

type BusinessSummary struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Owner    string `json:"owner"`
	Phone    string `json:"phone_no"`
	IsActive bool   `json:"isActive"`
}

type SubscriptionResponse struct {
	ID            uint                    `json:"id"`
	BusinessID    uint                    `json:"businessId"`
	Business      *BusinessSummary        `json:"business,omitempty"`
	Type          models.SubscriptionType `json:"type"`
	Price         float64                 `json:"price"`
	StartDate     time.Time               `json:"startDate"`
	EndDate       time.Time               `json:"endDate"`
	PaymentStatus models.PaymentStatus    `json:"paymentStatus"`
	PaymentDate   *time.Time              `json:"paymentDate"`
	CreatedAt     time.Time               `json:"createdAt"`
}

func toResponse(s *models.Subscription) SubscriptionResponse {
	resp := SubscriptionResponse{
		ID:            s.ID,
		BusinessID:    s.BusinessID,
		Type:          s.Type,
		Price:         s.Price,
		StartDate:     s.StartDate,
		EndDate:       s.EndDate,
		PaymentStatus: s.PaymentStatus,
		PaymentDate:   s.PaymentDate,
		CreatedAt:     s.CreatedAt,
	}
	if s.Business != nil {
		resp.Business = &BusinessSummary{
			ID:       s.Business.ID,
			Name:     s.Business.Name,
			Owner:    s.Business.Owner,
			Phone:    s.Business.Phone,
			IsActive: s.Business.IsActive,
		}
	}
	return resp
}

func snapshot(s *models.Subscription) map[string]interface{} {
	return map[string]interface{}{
		"business_id":    s.BusinessID,
		"type":           s.Type,
		"price":          s.Price,
		"start_date":     s.StartDate,
		"end_date":       s.EndDate,
		"payment_status": s.PaymentStatus,
	}
}

func parseTime(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperror.Validation(fmt.Sprintf("%s must be a date (YYYY-MM-DD)", field))
	}
	return d.UTC(), nil
}

// SyncBusinessActive: işletmenin aktif bayrağı geçerli aboneliğin ödeme durumunu izler.
// Hiç abonelik kalmadıysa bayrak değişmez.
func SyncBusinessActive(tx *gorm.DB, businessID uint) error {
	current, err := auth.CurrentSubscription(tx, businessID)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	return tx.Model(&models.Business{}).
		Where("id = ?", businessID).
		Update("is_active", current.PaymentStatus == models.PaymentStatusPaid).Error
}

// NewSubscription: başlangıçtan itibaren aylık 30, yıllık 365 gün.
func NewSubscription(businessID uint, typ models.SubscriptionType, price float64, status models.PaymentStatus, start time.Time) models.Subscription {
	sub := models.Subscription{
		BusinessID:    businessID,
		Type:          typ,
		Price:         price,
		StartDate:     start,
		EndDate:       start.Add(typ.Period()),
		PaymentStatus: status,
	}
	if status == models.PaymentStatusPaid {
		paid := start
		sub.PaymentDate = &paid
	}
	return sub
}

// POST /api/subscriptions
func CreateSubscriptionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSubscriptionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		typ := models.SubscriptionType(body.Type)
		if !typ.Valid() {
			return apperror.Validation("type must be monthly or yearly")
		}
		if body.BusinessID == 0 {
			return apperror.Validation("businessId is required")
		}
		if body.Price < 0 {
			return apperror.Validation("price cannot be negative")
		}
		status := models.PaymentStatusPaid
		if body.PaymentStatus != "" {
			status = models.PaymentStatus(body.PaymentStatus)
			if !status.Valid() {
				return apperror.Validation("paymentStatus must be paid, unpaid or pending")
			}
		}

		start := time.Now().UTC()
		if body.StartDate != "" {
			d, err := parseTime("startDate", body.StartDate)
			if err != nil {
				return err
			}
			start = d
		}

		userID, userName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		sub := NewSubscription(body.BusinessID, typ, body.Price, status, start)
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var business models.Business
			if err := tx.First(&business, "id = ?", body.BusinessID).Error; err != nil {
				if database.IsNotFound(err) {
					return apperror.NotFound("Business not found")
				}
				return err
			}
			if err := tx.Create(&sub).Error; err != nil {
				return err
			}
			if err := SyncBusinessActive(tx, business.ID); err != nil {
				return err
			}
			businessID := business.ID
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &businessID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "subscription",
				EntityID:    audit.ID(sub.ID),
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("%s subscription for %s until %s (%s)", sub.Type, business.Name, sub.EndDate.Format("2006-01-02"), sub.PaymentStatus),
				After:       snapshot(&sub),
			})
		})
		if err != nil {
			return err
		}

		if err := database.DB.Preload("Business").First(&sub, "id = ?", sub.ID).Error; err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(&sub))
	}
}

// GET /api/subscriptions?business_id=
func ListSubscriptionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Subscription{}).Preload("Business")
		if s := c.Query("business_id"); s != "" {
			bid, ok := database.ParseID(s)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "business_id is invalid")
			}
			dbq = dbq.Where("business_id = ?", bid)
		}

		var rows []models.Subscription
		if err := dbq.Order("end_date DESC, id DESC").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to list subscriptions")
		}

		resp := make([]SubscriptionResponse, 0, len(rows))
		for i := range rows {
			resp = append(resp, toResponse(&rows[i]))
		}
		return c.JSON(resp)
	}
}

func findSubscription(db *gorm.DB, idStr string) (*models.Subscription, error) {
	id, ok := database.ParseID(idStr)
	if !ok {
		return nil, apperror.Validation("Invalid subscription ID")
	}
	var sub models.Subscription
	if err := db.Preload("Business").First(&sub, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("Subscription not found")
		}
		return nil, err
	}
	return &sub, nil
}

// GET /api/subscriptions/:id
func GetSubscriptionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sub, err := findSubscription(database.DB, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(toResponse(sub))
	}
}

// PUT /api/subscriptions/:id
func UpdateSubscriptionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateSubscriptionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		userID, userName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		var sub *models.Subscription
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			found, err := findSubscription(tx, c.Params("id"))
			if err != nil {
				return err
			}
			before := snapshot(found)

			if body.Type != nil {
				typ := models.SubscriptionType(*body.Type)
				if !typ.Valid() {
					return apperror.Validation("type must be monthly or yearly")
				}
				found.Type = typ
			}
			if body.Price != nil {
				if *body.Price < 0 {
					return apperror.Validation("price cannot be negative")
				}
				found.Price = *body.Price
			}
			if body.StartDate != nil {
				d, err := parseTime("startDate", *body.StartDate)
				if err != nil {
					return err
				}
				found.StartDate = d
			}
			if body.EndDate != nil {
				d, err := parseTime("endDate", *body.EndDate)
				if err != nil {
					return err
				}
				found.EndDate = d
			}
			if !found.EndDate.After(found.StartDate) {
				return apperror.Validation("endDate must be after startDate")
			}
			if body.PaymentStatus != nil {
				status := models.PaymentStatus(*body.PaymentStatus)
				if !status.Valid() {
					return apperror.Validation("paymentStatus must be paid, unpaid or pending")
				}
				found.PaymentStatus = status
				if status == models.PaymentStatusPaid && found.PaymentDate == nil {
					now := time.Now().UTC()
					found.PaymentDate = &now
				}
			}

			if err := tx.Model(&models.Subscription{}).Where("id = ?", found.ID).Updates(map[string]interface{}{
				"type":           found.Type,
				"price":          found.Price,
				"start_date":     found.StartDate,
				"end_date":       found.EndDate,
				"payment_status": found.PaymentStatus,
				"payment_date":   found.PaymentDate,
			}).Error; err != nil {
				return err
			}
			if err := SyncBusinessActive(tx, found.BusinessID); err != nil {
				return err
			}
			sub = found

			businessID := found.BusinessID
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &businessID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "subscription",
				EntityID:    audit.ID(found.ID),
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Subscription %d updated (%s, until %s)", found.ID, found.PaymentStatus, found.EndDate.Format("2006-01-02")),
				Before:      before,
				After:       snapshot(found),
			})
		})
		if err != nil {
			return err
		}

		if err := database.DB.Preload("Business").First(sub, "id = ?", sub.ID).Error; err != nil {
			return err
		}
		return c.JSON(toResponse(sub))
	}
}

// DELETE /api/subscriptions/:id
func DeleteSubscriptionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, userName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			sub, err := findSubscription(tx, c.Params("id"))
			if err != nil {
				return err
			}
			if err := tx.Delete(&models.Subscription{}, "id = ?", sub.ID).Error; err != nil {
				return err
			}
			if err := SyncBusinessActive(tx, sub.BusinessID); err != nil {
				return err
			}
			businessID := sub.BusinessID
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &businessID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "subscription",
				EntityID:    audit.ID(sub.ID),
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Subscription %d deleted", sub.ID),
				Before:      snapshot(sub),
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Subscription deleted successfully"})
	}
}

// GET /api/subscriptions/me
func MySubscriptionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}

		sub, err := auth.CurrentSubscription(database.DB, businessID)
		if err != nil {
			return err
		}
		if sub == nil {
			return apperror.NotFound("No subscription found")
		}
		if err := database.DB.Preload("Business").First(sub, "id = ?", sub.ID).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		days := auth.DaysRemaining(sub, now)
		return c.JSON(fiber.Map{
			"subscription":  toResponse(sub),
			"daysRemaining": days,
			"isExpired":     now.After(sub.EndDate),
		})
	}
}
