package database

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"retail-backend/internal/config"
	"retail-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Models: AutoMigrate sırası. Testler de aynı listeyi kullanır.
func Models() []any {
	return []any{
		&models.Business{},
		&models.User{},
		&models.Session{},
		&models.Article{},
		&models.ArticleStock{},
		&models.Customer{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.InvoiceCounter{},
		&models.Payment{},
		&models.Subscription{},
		&models.AuditLog{},
	}
}

// Dialector: DSN boşsa ya da "sqlite:" ile başlıyorsa yerel SQLite dosyası, aksi halde Postgres.
func Dialector(dsn string) gorm.Dialector {
	switch {
	case dsn == "":
		return sqlite.Open("retail.db")
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	default:
		return postgres.Open(dsn)
	}
}

func Init(cfg *config.Config) {
	logLevel := logger.Warn
	if cfg.DBDebug {
		logLevel = logger.Info
	}
	gormLogger := logger.New(
		log.New(os.Stdout, "[GORM] ", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logLevel,
			Colorful:      false,
		},
	)

	var err error
	for i := 0; i < 5; i++ {
		DB, err = gorm.Open(Dialector(cfg.DatabaseDSN), &gorm.Config{
			Logger:         gormLogger,
			TranslateError: true,
			NowFunc:        func() time.Time { return time.Now().UTC() },
		})
		if err == nil {
			break
		}
		log.Printf("Veritabanına bağlanılamadı, tekrar deneniyor (%d/5): %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatalf("AutoMigrate hatası: %v", err)
	}

	if err := SeedDeveloper(DB, cfg.DevUsername, cfg.DevPassword); err != nil {
		log.Fatalf("Developer kullanıcısı oluşturulamadı: %v", err)
	}

	log.Println("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}

// staleOwnerFK: eski şemada users.business ilişkisi businesses.user_id üzerinden
// kurulmuştu. Bu kısıt kalırsa işletme silme (önce kullanıcılar) FK hatası verir.
const staleOwnerFK = "fk_users_business"

func Migrate(db *gorm.DB) error {
	m := db.Migrator()
	if m.HasTable(&models.Business{}) && m.HasConstraint(&models.Business{}, staleOwnerFK) {
		if err := m.DropConstraint(&models.Business{}, staleOwnerFK); err != nil {
			return err
		}
	}
	return db.AutoMigrate(Models()...)
}

// SeedDeveloper: hiç developer yoksa varsayılan hesabı oluşturur.
func SeedDeveloper(db *gorm.DB, username, password string) error {
	var existing models.User
	err := db.Where("role = ?", models.RoleDeveloper).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	dev := models.User{
		Name:         "Developer",
		Username:     username,
		PasswordHash: string(hash),
		Role:         models.RoleDeveloper,
		IsActive:     true,
	}
	if err := db.Create(&dev).Error; err != nil {
		return err
	}
	log.Printf("Developer kullanıcısı oluşturuldu: %s", username)
	return nil
}
