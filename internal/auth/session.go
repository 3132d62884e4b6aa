package auth

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"retail-backend/internal/apperror"
	"retail-backend/internal/database"
	"retail-backend/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	errInvalidCredentials = apperror.Unauthorized(apperror.CodeInvalidCredentials, "Invalid username or password")
	errAlreadyLoggedIn    = apperror.Forbidden(apperror.CodeAlreadyLoggedIn, "User already logged in from another device.")
	errUserInactive       = apperror.Forbidden(apperror.CodeUserInactive, "User is inactive")
)

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// Kullanıcı bulunamadığında da bcrypt karşılaştırması yapılır, yanıt süresi aynı kalsın.
func compareWithDummy(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

type LoginInput struct {
	Username  string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	Token   string
	Session models.Session
	User    models.User
	Access  Access
}

// Login: NoSession -> Active geçişi.
func Login(db *gorm.DB, secret string, ttl time.Duration, in LoginInput, now time.Time) (*LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, apperror.Validation("Username and password are required")
	}

	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		if database.IsNotFound(err) {
			compareWithDummy(in.Password)
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	// Token süresi dolmuş ama kapatılmamış oturumlar artık kullanılamaz, kapat.
	if err := closeStaleSessions(db, user.ID, now.Add(-ttl), now); err != nil {
		return nil, err
	}

	// Aktif oturum varsa şifre doğru olsun olmasın reddedilir.
	var active int64
	if err := db.Model(&models.Session{}).
		Where("user_id = ? AND is_active = ?", user.ID, true).
		Count(&active).Error; err != nil {
		return nil, err
	}
	if active > 0 {
		compareWithDummy(in.Password)
		return nil, errAlreadyLoggedIn
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		return nil, errUserInactive
	}

	access, err := EvaluateAccess(db, &user, now)
	if err != nil {
		return nil, err
	}

	session := models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		LoginTime: now,
		UserAgent: truncate(in.UserAgent, 255),
		IPAddress: truncate(in.IPAddress, 64),
		IsActive:  true,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Update("last_login", now).Error
	})
	if err != nil {
		// Aynı anda iki giriş: kısmi unique index ikinciyi reddeder.
		if database.IsUniqueViolation(err) {
			return nil, errAlreadyLoggedIn
		}
		return nil, err
	}
	user.LastLogin = &now

	token, err := GenerateToken(secret, ttl, user.ID, session.ID, now)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, Session: session, User: user, Access: access}, nil
}

// Logout: idempotent. Zaten kapalı oturum için tekrar kapatma yapılmaz.
// İlk dönüş değeri bu çağrının oturumu kapatıp kapatmadığını söyler.
func Logout(db *gorm.DB, sessionID string, now time.Time) (bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false, apperror.Validation("Session ID is required")
	}

	var session models.Session
	if err := db.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperror.NotFound("Session not found")
		}
		return false, err
	}
	if !session.IsActive {
		return false, nil
	}
	return closeSession(db, &session, now)
}

func closeSession(db *gorm.DB, session *models.Session, now time.Time) (bool, error) {
	duration := SessionMinutes(session.LoginTime, now)
	// is_active = true koşulu ile eşzamanlı ikinci kapatma hiçbir satırı etkilemez.
	res := db.Model(&models.Session{}).
		Where("id = ? AND is_active = ?", session.ID, true).
		Updates(map[string]interface{}{
			"is_active":   false,
			"logout_time": now,
			"duration":    duration,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	session.IsActive = false
	session.LogoutTime = &now
	session.Duration = duration
	return true, nil
}

func closeStaleSessions(db *gorm.DB, userID uint, cutoff, now time.Time) error {
	_, err := closeSessionsWhere(db, db.Where("user_id = ? AND is_active = ? AND login_time < ?", userID, true, cutoff), now)
	return err
}

// SessionMinutes: tam dakika, aşağı yuvarlanır.
func SessionMinutes(login, logout time.Time) int {
	d := logout.Sub(login)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// truncate: en fazla n bayt, çok baytlı karakteri ortadan bölmeden.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// CloseUserSessions: kullanıcının açık oturumlarını kapatır (kullanıcı pasife alındığında).
func CloseUserSessions(db *gorm.DB, userID uint, now time.Time) (int, error) {
	return closeSessionsWhere(db, db.Where("user_id = ? AND is_active = ?", userID, true), now)
}

// CloseBusinessSessions: işletmenin bütün kullanıcılarının açık oturumlarını kapatır.
func CloseBusinessSessions(db *gorm.DB, businessID uint, now time.Time) (int, error) {
	users := db.Model(&models.User{}).Select("id").Where("business_id = ?", businessID)
	return closeSessionsWhere(db, db.Where("user_id IN (?) AND is_active = ?", users, true), now)
}

func closeSessionsWhere(db *gorm.DB, q *gorm.DB, now time.Time) (int, error) {
	var open []models.Session
	if err := q.Find(&open).Error; err != nil {
		return 0, err
	}
	closed := 0
	for i := range open {
		ok, err := closeSession(db, &open[i], now)
		if err != nil {
			return closed, err
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}
