package models

import "time"

type UserRole string

const (
	RoleDeveloper UserRole = "developer"
	RoleAdmin     UserRole = "admin"
	RoleUser      UserRole = "user"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleDeveloper, RoleAdmin, RoleUser:
		return true
	}
	return false
}

type User struct {
	ID           uint      `gorm:"primaryKey"`
	BusinessID   *uint     `gorm:"index"` // developer için nil
	Business     *Business `gorm:"foreignKey:BusinessID"`
	Name         string    `gorm:"size:100;not null"`
	Username     string    `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	Role         UserRole  `gorm:"size:20;not null"`
	IsActive     bool      `gorm:"not null"`
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
