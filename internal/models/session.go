package models

import "time"

// Session: kullanıcı başına en fazla bir aktif oturum olabilir.
// Kural veritabanında kısmi unique index ile korunur (is_active = true olan satırlar).
type Session struct {
	ID         string    `gorm:"primaryKey;size:36"`
	UserID     uint      `gorm:"not null;index;uniqueIndex:idx_sessions_one_active,where:is_active = true"`
	LoginTime  time.Time `gorm:"not null"`
	LogoutTime *time.Time
	Duration   int    `gorm:"not null;default:0"` // dakika
	UserAgent  string `gorm:"size:255"`
	IPAddress  string `gorm:"size:64"`
	IsActive   bool   `gorm:"not null;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
