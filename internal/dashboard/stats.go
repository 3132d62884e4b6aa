package dashboard

import (
	"time"

	"retail-backend/internal/auth"
	"retail-backend/internal/database"
	"retail-backend/internal/ledger"
	"retail-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// View: rol başına bir gösterim. Her istekte rol ile bir kez seçilir.
type View interface {
	Role() models.UserRole
}

type DeveloperView struct {
	Kind             models.UserRole `json:"kind"`
	Businesses       int64           `json:"businesses"`
	ActiveBusinesses int64           `json:"activeBusinesses"`
	Users            int64           `json:"users"`
	ActiveSessions   int64           `json:"activeSessions"`
	Subscriptions    int64           `json:"subscriptions"`
}

type AdminView struct {
	Kind          models.UserRole `json:"kind"`
	TodaySales    float64         `json:"todaySales"`
	MonthlySales  float64         `json:"monthlySales"`
	TodayPayments float64         `json:"todayPayments"`
	Customers     int64           `json:"customers"`
	Articles      int64           `json:"articles"`
	Users         int64           `json:"users"`
}

type UserView struct {
	Kind          models.UserRole `json:"kind"`
	TodaySales    float64         `json:"todaySales"`
	MonthlySales  float64         `json:"monthlySales"`
	TodayPayments float64         `json:"todayPayments"`
	Customers     int64           `json:"customers"`
	Invoices      int64           `json:"invoices"`
}

func (DeveloperView) Role() models.UserRole { return models.RoleDeveloper }
func (AdminView) Role() models.UserRole     { return models.RoleAdmin }
func (UserView) Role() models.UserRole      { return models.RoleUser }

type salesFigures struct {
	today, month, payments float64
}

func figures(db *gorm.DB, businessID uint, authorID *uint, now time.Time) (salesFigures, error) {
	today := ledger.StartOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	scoped := func(q *gorm.DB) *gorm.DB {
		q = q.Where("business_id = ?", businessID)
		if authorID != nil {
			q = q.Where("user_id = ?", *authorID)
		}
		return q
	}

	var f salesFigures
	if err := scoped(db.Model(&models.Invoice{})).
		Select("COALESCE(SUM(net_amount), 0)").
		Where("created_at >= ? AND created_at < ?", today, tomorrow).
		Scan(&f.today).Error; err != nil {
		return f, err
	}
	if err := scoped(db.Model(&models.Invoice{})).
		Select("COALESCE(SUM(net_amount), 0)").
		Where("created_at >= ?", monthStart).
		Scan(&f.month).Error; err != nil {
		return f, err
	}
	if err := scoped(db.Model(&models.Payment{})).
		Select("COALESCE(SUM(amount), 0)").
		Where("created_at >= ? AND created_at < ?", today, tomorrow).
		Scan(&f.payments).Error; err != nil {
		return f, err
	}
	return f, nil
}

// BuildView: developer platform sayılarını, admin işletme toplamlarını,
// user ise sadece kendi kestiği fatura ve aldığı ödemeleri görür.
func BuildView(db *gorm.DB, role models.UserRole, userID, businessID uint, now time.Time) (View, error) {
	now = now.UTC()
	switch role {
	case models.RoleDeveloper:
		v := DeveloperView{Kind: models.RoleDeveloper}
		if err := db.Model(&models.Business{}).Count(&v.Businesses).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Business{}).Where("is_active = ?", true).Count(&v.ActiveBusinesses).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.User{}).Count(&v.Users).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Session{}).Where("is_active = ?", true).Count(&v.ActiveSessions).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Subscription{}).Where("end_date >= ?", now).Count(&v.Subscriptions).Error; err != nil {
			return nil, err
		}
		return v, nil

	case models.RoleAdmin:
		f, err := figures(db, businessID, nil, now)
		if err != nil {
			return nil, err
		}
		v := AdminView{Kind: models.RoleAdmin, TodaySales: f.today, MonthlySales: f.month, TodayPayments: f.payments}
		if err := db.Model(&models.Customer{}).Where("business_id = ?", businessID).Count(&v.Customers).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Article{}).Where("business_id = ?", businessID).Count(&v.Articles).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.User{}).Where("business_id = ?", businessID).Count(&v.Users).Error; err != nil {
			return nil, err
		}
		return v, nil

	default:
		f, err := figures(db, businessID, &userID, now)
		if err != nil {
			return nil, err
		}
		v := UserView{Kind: models.RoleUser, TodaySales: f.today, MonthlySales: f.month, TodayPayments: f.payments}
		if err := db.Model(&models.Customer{}).Where("business_id = ?", businessID).Count(&v.Customers).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Invoice{}).Where("business_id = ? AND user_id = ?", businessID, userID).Count(&v.Invoices).Error; err != nil {
			return nil, err
		}
		return v, nil
	}
}

// GET /api/dashboard/stats
func StatsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		role := auth.CurrentRole(c)

		var businessID uint
		if role != models.RoleDeveloper {
			if businessID, err = auth.TenantID(c); err != nil {
				return err
			}
		}

		view, err := BuildView(database.DB, role, userID, businessID, time.Now().UTC())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to build dashboard")
		}
		return c.JSON(view)
	}
}
