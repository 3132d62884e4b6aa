package auth

import (
	"errors"
	"time"

	"retail-backend/internal/apperror"
	"retail-backend/internal/models"

	"gorm.io/gorm"
)

// Access: giriş ve her istekte hesaplanan erişim durumu.
type Access struct {
	ReadOnly     bool
	Business     *models.Business
	Subscription *models.Subscription
}

var (
	errBusinessInactive = apperror.Forbidden(apperror.CodeBusinessInactive, "Business is inactive")
	errNotStarted       = apperror.Forbidden(apperror.CodeSubscriptionNotStarted, "Subscription not yet started")
)

// CurrentSubscription: bitiş tarihi en geç olan abonelik. Hiç yoksa nil.
func CurrentSubscription(db *gorm.DB, businessID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Where("business_id = ?", businessID).
		Order("end_date DESC, id DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// EvaluateAccess: developer tüm işletme/abonelik kontrollerini atlar.
// Diğer roller için: işletme aktif olmalı; abonelik yoksa ya da süresi dolmuşsa salt-okunur;
// başlangıç tarihi gelmemişse giriş reddedilir.
func EvaluateAccess(db *gorm.DB, user *models.User, now time.Time) (Access, error) {
	if user.Role == models.RoleDeveloper {
		return Access{}, nil
	}
	if user.BusinessID == nil {
		return Access{}, errBusinessInactive
	}

	var business models.Business
	if err := db.First(&business, "id = ?", *user.BusinessID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Access{}, errBusinessInactive
		}
		return Access{}, err
	}
	if !business.IsActive {
		return Access{}, errBusinessInactive
	}

	sub, err := CurrentSubscription(db, business.ID)
	if err != nil {
		return Access{}, err
	}
	access := Access{Business: &business, Subscription: sub}
	switch {
	case sub == nil:
		access.ReadOnly = true
	case now.Before(sub.StartDate):
		return Access{}, errNotStarted
	case now.After(sub.EndDate):
		access.ReadOnly = true
	}
	return access, nil
}

// DaysRemaining: bitişe kalan gün (yukarı yuvarlanır), süresi geçmişse 0.
func DaysRemaining(sub *models.Subscription, now time.Time) int {
	if sub == nil {
		return 0
	}
	left := sub.EndDate.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) != 0 {
		days++
	}
	return days
}
