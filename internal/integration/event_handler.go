package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/persuratan-gin/internal/model"
	"github.com/mautops/persuratan-gin/internal/repository"
	"github.com/mautops/persuratan-gin/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 公文事件类型
const (
	EventDocumentCreated       = "document_created"
	EventRecipientAdded        = "recipient_added"
	EventRecipientForwarded    = "recipient_forwarded"
	EventRecipientAcknowledged = "recipient_acknowledged"
	EventSignersRequired       = "signers_required"
	EventDocumentRouted        = "document_routed"
	EventDocumentSigned        = "document_signed"
	EventDocumentSealed        = "document_sealed"
)

// DocumentEvent 公文事件
type DocumentEvent struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Document string                 `json:"document"` // 对外引用 hash
	Actor    string                 `json:"actor"`
	Status   int                    `json:"status"`
	Audience []string               `json:"audience"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Time     time.Time              `json:"time"`

	documentID string
}

// newDocumentEvent 创建事件,受众为公文所有参与人
func newDocumentEvent(doc *workflow.Document, eventType, actor string, data map[string]interface{}) *DocumentEvent {
	return &DocumentEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Document:   doc.Hash,
		Actor:      actor,
		Status:     doc.Status.Code(),
		Audience:   audienceOf(doc),
		Data:       data,
		Time:       time.Now().UTC(),
		documentID: doc.ID,
	}
}

// audienceOf 计算事件受众
func audienceOf(doc *workflow.Document) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	add(doc.OwnerPegawaiID)
	add(doc.CreatedBy)
	for _, s := range doc.Signers {
		add(s.SignerID)
	}
	for _, r := range doc.Recipients {
		add(r.RecipientID)
	}
	return out
}

// toModel 转换为持久化模型
func (e *DocumentEvent) toModel() (*model.EventModel, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return &model.EventModel{
		ID:         e.ID,
		DocumentID: e.documentID,
		Type:       e.Type,
		Data:       data,
		Status:     model.EventStatusPending,
		CreatedAt:  e.Time,
		UpdatedAt:  e.Time,
	}, nil
}

// Notifier 事件推送目标
type Notifier interface {
	BroadcastToUser(userID string, message []byte)
}

// EventDispatcher 事件分发器
// 事件在公文事务内落库,提交后异步推送
type EventDispatcher struct {
	eventRepo repository.EventRepository
	notifier  Notifier
	queue     chan *DocumentEvent
	workers   int
	stop      chan struct{}
	wg        sync.WaitGroup
	once      sync.Once
	logger    *logrus.Logger
}

// NewEventDispatcher 创建事件分发器
func NewEventDispatcher(db *gorm.DB, notifier Notifier, workers int, logger *logrus.Logger) *EventDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &EventDispatcher{
		eventRepo: repository.NewEventRepository(db),
		notifier:  notifier,
		queue:     make(chan *DocumentEvent, 1000),
		workers:   workers,
		stop:      make(chan struct{}),
		logger:    logger,
	}
}

// Start 启动 worker goroutines
func (d *EventDispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Publish 将已提交的事件入队
func (d *EventDispatcher) Publish(events ...*DocumentEvent) {
	for _, evt := range events {
		select {
		case d.queue <- evt:
		default:
			// 队列满时保留 pending 状态,由 Redeliver 补发
			d.logger.WithFields(logrus.Fields{
				"event":    evt.ID,
				"type":     evt.Type,
				"document": evt.Document,
			}).Warn("event queue full, deferring event")
		}
	}
}

// Redeliver 重新投递未完成的事件
func (d *EventDispatcher) Redeliver(ctx context.Context, limit int) (int, error) {
	pending, err := d.eventRepo.FindPending(limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending events: %w", err)
	}

	count := 0
	for _, em := range pending {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		var evt DocumentEvent
		if err := json.Unmarshal(em.Data, &evt); err != nil {
			d.logger.WithError(err).WithField("event", em.ID).Error("failed to decode event")
			_ = d.eventRepo.UpdateStatus(em.ID, model.EventStatusFailed, em.RetryCount+1)
			continue
		}
		evt.documentID = em.DocumentID
		d.deliver(&evt, em.RetryCount)
		count++
	}
	return count, nil
}

// worker 事件处理 worker
func (d *EventDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case evt := <-d.queue:
			d.deliver(evt, 0)
		case <-d.stop:
			return
		}
	}
}

// deliver 推送到所有受众并更新事件状态
func (d *EventDispatcher) deliver(evt *DocumentEvent, retryCount int) {
	if d.notifier != nil {
		message, err := json.Marshal(evt)
		if err != nil {
			d.logger.WithError(err).WithField("event", evt.ID).Error("failed to marshal event")
			_ = d.eventRepo.UpdateStatus(evt.ID, model.EventStatusFailed, retryCount+1)
			return
		}
		for _, userID := range evt.Audience {
			d.notifier.BroadcastToUser(userID, message)
		}
	}

	if err := d.eventRepo.UpdateStatus(evt.ID, model.EventStatusSuccess, retryCount); err != nil {
		d.logger.WithError(err).WithField("event", evt.ID).Warn("failed to update event status")
	}
}

// Stop 停止事件分发器
func (d *EventDispatcher) Stop() {
	d.once.Do(func() {
		close(d.stop)
	})
	d.wg.Wait()
}
