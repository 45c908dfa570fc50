package service

import (
	"context"
	"encoding/json"
	"time"

	"rispay/internal/model"
	"rispay/internal/repository"
	"rispay/pkg/idgen"

	"gorm.io/gorm"
)

// auditDetails 审计详情，统一带上时间戳
type auditDetails map[string]interface{}

func writeAudit(ctx context.Context, repo *repository.AuditLogRepository, tx *gorm.DB, adminID, action string, details auditDetails) error {
	if details == nil {
		details = auditDetails{}
	}
	details["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return repo.Create(ctx, tx, &model.AuditLog{
		ID:         idgen.NewID(idgen.PrefixAudit),
		AdminID:    adminID,
		ActionType: action,
		Details:    string(data),
	})
}
