package audit

import (
	"encoding/json"
	"fmt"

	"retail-backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LogOptions struct {
	BusinessID  *uint
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    string
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog: db bir transaction olabilir; o zaman log da aynı commit'e girer.
func WriteLog(db *gorm.DB, opts LogOptions) error {
	entry := models.AuditLog{
		BusinessID:  opts.BusinessID,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  toJSON(opts.Before),
		AfterData:   toJSON(opts.After),
	}

	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}
	return nil
}

// jsonb için boş string yerine "null" yazılır.
func toJSON(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

// ID yardımcı: sayısal id'leri EntityID alanına çevirir.
func ID(id uint) string {
	return fmt.Sprintf("%d", id)
}
