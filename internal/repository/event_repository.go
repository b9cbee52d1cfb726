package repository

import (
	"time"

	"github.com/mautops/persuratan-gin/internal/model"
	"gorm.io/gorm"
)

// EventRepository 事件仓储接口
type EventRepository interface {
	WithTx(tx *gorm.DB) EventRepository
	Save(event *model.EventModel) error
	FindByDocumentID(documentID string) ([]*model.EventModel, error)
	FindPending(limit int) ([]*model.EventModel, error)
	UpdateStatus(id string, status string, retryCount int) error
}

// eventRepository 事件仓储实现
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// WithTx 绑定事务
func (r *eventRepository) WithTx(tx *gorm.DB) EventRepository {
	return &eventRepository{db: tx}
}

// Save 保存事件
func (r *eventRepository) Save(event *model.EventModel) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return r.db.Save(event).Error
}

// FindByDocumentID 根据公文 ID 查找事件
func (r *eventRepository) FindByDocumentID(documentID string) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := r.db.Where("document_id = ?", documentID).Order("created_at ASC").Find(&events).Error
	return events, err
}

// FindPending 查找待处理的事件
func (r *eventRepository) FindPending(limit int) ([]*model.EventModel, error) {
	var events []*model.EventModel
	query := r.db.Where("status = ?", model.EventStatusPending).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&events).Error
	return events, err
}

// UpdateStatus 更新事件处理状态
func (r *eventRepository) UpdateStatus(id string, status string, retryCount int) error {
	return r.db.Model(&model.EventModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"retry_count": retryCount,
			"updated_at":  time.Now().UTC(),
		}).Error
}
