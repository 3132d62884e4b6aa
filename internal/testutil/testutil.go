// Package testutil opens an in-memory SQLite database with the full schema
// and seeds the records most tests start from.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"retail-backend/internal/config"
	"retail-backend/internal/database"
	"retail-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const Password = "secret123"

var phoneSeq atomic.Int64

// Config: testlerde kullanılan sabit ayarlar.
func Config() *config.Config {
	return &config.Config{
		HTTPPort:    "0",
		DatabaseDSN: "sqlite::memory:",
		JWTSecret:   "test-secret-test-secret-test-secret-42",
		TokenTTL:    24 * time.Hour,
		CORSOrigins: "http://localhost:5173",
	}
}

// OpenDB: test adına özel paylaşımlı bellek içi veritabanı açar, şemayı kurar
// ve database.DB'yi ona yönlendirir.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// Tek bağlantı: bellek içi veritabanı bağlantı kapanınca kaybolmasın, kilit çakışması olmasın.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	database.DB = db
	return db
}

func hash(t *testing.T, password string) string {
	t.Helper()
	// Testleri hızlı tutmak için en düşük maliyet.
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}

// Business: aktif işletme ve şu an geçerli, ödenmiş aylık abonelik.
func Business(t *testing.T, db *gorm.DB, name string) models.Business {
	t.Helper()
	b := models.Business{
		Name:             name,
		Owner:            name + " Owner",
		Phone:            fmt.Sprintf("0300%07d", phoneSeq.Add(1)),
		RegistrationDate: time.Now().UTC(),
		Type:             models.SubscriptionMonthly,
		Price:            1000,
		IsActive:         true,
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("business: %v", err)
	}
	now := time.Now().UTC()
	Subscription(t, db, b.ID, now.Add(-24*time.Hour), now.Add(29*24*time.Hour))
	return b
}

func Subscription(t *testing.T, db *gorm.DB, businessID uint, start, end time.Time) models.Subscription {
	t.Helper()
	paid := start
	s := models.Subscription{
		BusinessID:    businessID,
		Type:          models.SubscriptionMonthly,
		Price:         1000,
		StartDate:     start.UTC(),
		EndDate:       end.UTC(),
		PaymentStatus: models.PaymentStatusPaid,
		PaymentDate:   &paid,
	}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("subscription: %v", err)
	}
	return s
}

// User: şifresi Password olan aktif kullanıcı. businessID developer için nil.
func User(t *testing.T, db *gorm.DB, username string, role models.UserRole, businessID *uint) models.User {
	t.Helper()
	u := models.User{
		BusinessID:   businessID,
		Name:         username,
		Username:     username,
		PasswordHash: hash(t, Password),
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	return u
}

// Article: verilen başlangıç stoğu ile artikel.
func Article(t *testing.T, db *gorm.DB, businessID, userID uint, articleNo string, price float64, stock int) models.Article {
	t.Helper()
	a := models.Article{
		BusinessID:    businessID,
		UserID:        userID,
		ArticleNo:     articleNo,
		Season:        "Summer",
		Size:          "M",
		Category:      "Shirts",
		PurchasePrice: price / 2,
		SellingPrice:  price,
	}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("article: %v", err)
	}
	if stock != 0 {
		Movement(t, db, a, userID, stock)
	}
	return a
}

func Movement(t *testing.T, db *gorm.DB, a models.Article, userID uint, qty int) models.ArticleStock {
	t.Helper()
	m := models.ArticleStock{
		ArticleID:  a.ID,
		BusinessID: a.BusinessID,
		UserID:     userID,
		Quantity:   qty,
		Type:       models.MovementTypeFor(qty),
		Note:       "test",
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("movement: %v", err)
	}
	return m
}

func Customer(t *testing.T, db *gorm.DB, businessID, userID uint, name, phone string) models.Customer {
	t.Helper()
	c := models.Customer{
		BusinessID: businessID,
		UserID:     userID,
		Name:       name,
		PersonName: name + " Person",
		Phone:      phone,
		IsActive:   true,
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("customer: %v", err)
	}
	return c
}

func Ptr[T any](v T) *T { return &v }
