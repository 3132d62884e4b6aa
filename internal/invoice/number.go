package invoice

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"retail-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const numberPrefix = "INV-"

// FormatNumber: INV-<YY><sıra>, sıra en az 3 hane (INV-25001).
func FormatNumber(year, serial int) string {
	return fmt.Sprintf("%s%02d%03d", numberPrefix, year%100, serial)
}

// ParseSerial: verilen iki haneli yıla ait numaradan sırayı çıkarır.
func ParseSerial(number string, year int) (int, bool) {
	prefix := fmt.Sprintf("%s%02d", numberPrefix, year%100)
	if !strings.HasPrefix(number, prefix) {
		return 0, false
	}
	tail := number[len(prefix):]
	if len(tail) < 3 {
		return 0, false
	}
	serial, err := strconv.Atoi(tail)
	if err != nil || serial <= 0 {
		return 0, false
	}
	return serial, true
}

// allocateNumber: sayaç satırını kilitleyip bir sonraki numarayı verir.
// tx'in commit'i ile birlikte kalıcı olur; rollback olursa numara da geri alınır.
func allocateNumber(tx *gorm.DB, businessID uint, at time.Time) (string, error) {
	year := at.Year() % 100

	seed := models.InvoiceCounter{BusinessID: businessID, Year: year, LastSerial: 0, UpdatedAt: at}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed)
	if res.Error != nil {
		return "", res.Error
	}
	created := res.RowsAffected == 1

	var counter models.InvoiceCounter
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND year = ?", businessID, year).
		First(&counter).Error; err != nil {
		return "", err
	}

	next := counter.LastSerial + 1
	if created {
		// Sayaç yeni açıldıysa o yıl daha önce verilmiş numaraların devamından başla.
		highest, err := highestSerial(tx, businessID, year)
		if err != nil {
			return "", err
		}
		if highest >= next {
			next = highest + 1
		}
	}

	if err := tx.Model(&models.InvoiceCounter{}).
		Where("business_id = ? AND year = ?", businessID, year).
		Updates(map[string]interface{}{"last_serial": next, "updated_at": at}).Error; err != nil {
		return "", err
	}

	return FormatNumber(year, next), nil
}

func highestSerial(tx *gorm.DB, businessID uint, year int) (int, error) {
	var numbers []string
	prefix := fmt.Sprintf("%s%02d", numberPrefix, year)
	if err := tx.Model(&models.Invoice{}).
		Where("business_id = ? AND invoice_number LIKE ?", businessID, prefix+"%").
		Pluck("invoice_number", &numbers).Error; err != nil {
		return 0, err
	}

	highest := 0
	for _, n := range numbers {
		if s, ok := ParseSerial(n, year); ok && s > highest {
			highest = s
		}
	}
	return highest, nil
}
