package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/persuratan-gin/internal/auth"
	"github.com/mautops/persuratan-gin/internal/model"
	"github.com/mautops/persuratan-gin/internal/repository"
)

// AuditLogService 审计日志服务
// 公文变更的审计在变更事务内写入,这里记录事务之外的操作(下载、打包)
type AuditLogService interface {
	RecordAction(ctx context.Context, userID string, action string, resourceType string, resourceID string, details interface{}) error
	ListByResource(ctx context.Context, resourceType string, resourceID string) ([]*AuditEntry, error)
}

// AuditEntry 审计记录
type AuditEntry struct {
	UserID    string          `json:"user_id"`
	Action    string          `json:"action"`
	RequestID string          `json:"request_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	userID string,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	meta := auth.RequestMetaFromContext(ctx)
	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    meta.RequestID,
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
		Details:      detailsJSON,
		CreatedAt:    time.Now().UTC(),
	}

	return s.auditRepo.Save(auditLog)
}

// ListByResource 查询资源的审计记录
func (s *auditLogService) ListByResource(ctx context.Context, resourceType string, resourceID string) ([]*AuditEntry, error) {
	logs, err := s.auditRepo.FindByResource(resourceType, resourceID)
	if err != nil {
		return nil, err
	}

	entries := make([]*AuditEntry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, &AuditEntry{
			UserID:    l.UserID,
			Action:    l.Action,
			RequestID: l.RequestID,
			Details:   json.RawMessage(l.Details),
			CreatedAt: l.CreatedAt,
		})
	}
	return entries, nil
}
