package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/persuratan-gin/internal/auth"
	"github.com/mautops/persuratan-gin/internal/lock"
	"github.com/mautops/persuratan-gin/internal/metrics"
	"github.com/mautops/persuratan-gin/internal/model"
	"github.com/mautops/persuratan-gin/internal/repository"
	"github.com/mautops/persuratan-gin/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrLockTimeout 获取公文锁超时
var ErrLockTimeout = errors.New("timed out waiting for document lock")

// transition 一次状态变更
type transition struct {
	from   workflow.Status
	to     workflow.Status
	reason string
}

// auditEntry 一条待写入的审计记录
type auditEntry struct {
	action  string
	details map[string]interface{}
}

// Mutation 单个公文在一次事务内的变更
// 仅在回调内有效
type Mutation struct {
	Tx    *gorm.DB
	Doc   *workflow.Document
	Actor string

	ctx         context.Context
	changed     bool
	transitions []transition
	audits      []auditEntry
	events      []*DocumentEvent
	onRollback  []func()
}

// Context 返回本次变更的上下文
func (m *Mutation) Context() context.Context {
	return m.ctx
}

// Touch 标记公文需要保存
func (m *Mutation) Touch() {
	m.changed = true
}

// Route 执行外部路由的状态流转
func (m *Mutation) Route(to workflow.Status, reason string) error {
	from := m.Doc.Status
	if err := m.Doc.Route(to); err != nil {
		return err
	}
	m.recordTransition(from, to, reason)
	return nil
}

// AdvanceOnFullSignature 签署完成后推进到已签署
func (m *Mutation) AdvanceOnFullSignature() (bool, error) {
	from := m.Doc.Status
	changed, err := m.Doc.AdvanceOnFullSignature()
	if err != nil || !changed {
		return changed, err
	}
	m.recordTransition(from, m.Doc.Status, "all signers signed")
	return true, nil
}

func (m *Mutation) recordTransition(from, to workflow.Status, reason string) {
	m.changed = true
	m.transitions = append(m.transitions, transition{from: from, to: to, reason: reason})
}

// Audit 记录审计日志
func (m *Mutation) Audit(action string, details map[string]interface{}) {
	m.audits = append(m.audits, auditEntry{action: action, details: details})
}

// Emit 记录公文事件
func (m *Mutation) Emit(eventType string, data map[string]interface{}) {
	m.events = append(m.events, newDocumentEvent(m.Doc, eventType, m.Actor, data))
}

// OnRollback 注册事务失败后的补偿动作
func (m *Mutation) OnRollback(fn func()) {
	m.onRollback = append(m.onRollback, fn)
}

// DocumentManager 公文变更管理器
// 每次变更持有公文锁并在单个数据库事务内完成
type DocumentManager struct {
	db          *gorm.DB
	docRepo     repository.DocumentRepository
	historyRepo repository.StateHistoryRepository
	auditRepo   repository.AuditLogRepository
	eventRepo   repository.EventRepository
	locker      lock.Locker
	dispatcher  *EventDispatcher
	lockTimeout time.Duration
	logger      *logrus.Logger
}

// DocumentManagerOptions 管理器可选参数
type DocumentManagerOptions struct {
	Locker      lock.Locker
	Dispatcher  *EventDispatcher
	LockTimeout time.Duration
	Logger      *logrus.Logger
}

// NewDocumentManager 创建公文变更管理器
func NewDocumentManager(db *gorm.DB, opts DocumentManagerOptions) *DocumentManager {
	if opts.Locker == nil {
		opts.Locker = lock.NewKeyedMutex()
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &DocumentManager{
		db:          db,
		docRepo:     repository.NewDocumentRepository(db),
		historyRepo: repository.NewStateHistoryRepository(db),
		auditRepo:   repository.NewAuditLogRepository(db),
		eventRepo:   repository.NewEventRepository(db),
		locker:      opts.Locker,
		dispatcher:  opts.Dispatcher,
		lockTimeout: opts.LockTimeout,
		logger:      opts.Logger,
	}
}

// Documents 返回只读仓储
func (m *DocumentManager) Documents() repository.DocumentRepository {
	return m.docRepo
}

// Create 创建公文
func (m *DocumentManager) Create(ctx context.Context, doc *workflow.Document, actorID string) error {
	mut := &Mutation{Doc: doc, Actor: actorID, ctx: ctx}
	mut.recordTransition(0, doc.Status, "document created")
	mut.Audit("create", map[string]interface{}{"register_number": doc.RegisterNumber, "hal": doc.Hal})
	mut.Emit(EventDocumentCreated, nil)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mut.Tx = tx
		if err := m.docRepo.WithTx(tx).Create(ctx, doc); err != nil {
			return err
		}
		return m.persistRecords(tx, mut)
	})
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	metrics.RecordDocumentCreated()
	m.afterCommit(mut)
	return nil
}

// WithDocument 在公文锁和事务内执行变更
// fn 返回错误时整个事务回滚
func (m *DocumentManager) WithDocument(ctx context.Context, hash, actorID string, fn func(mut *Mutation) error) (*workflow.Document, error) {
	lockCtx, cancel := context.WithTimeout(ctx, m.lockTimeout)
	unlock, err := m.locker.Lock(lockCtx, lockKey(hash))
	cancel()
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, hash)
		}
		return nil, err
	}
	defer unlock()

	mut := &Mutation{Actor: actorID, ctx: ctx}
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		docs := m.docRepo.WithTx(tx)
		doc, err := docs.FindByHashForUpdate(ctx, hash)
		if err != nil {
			return err
		}
		mut.Tx = tx
		mut.Doc = doc

		if err := fn(mut); err != nil {
			return err
		}
		if !mut.changed {
			return nil
		}
		if err := docs.Save(ctx, doc); err != nil {
			return err
		}
		return m.persistRecords(tx, mut)
	})
	if err != nil {
		for i := len(mut.onRollback) - 1; i >= 0; i-- {
			mut.onRollback[i]()
		}
		return nil, err
	}

	m.afterCommit(mut)
	return mut.Doc, nil
}

// persistRecords 写入状态历史、审计日志和事件
func (m *DocumentManager) persistRecords(tx *gorm.DB, mut *Mutation) error {
	now := time.Now().UTC()
	meta := auth.RequestMetaFromContext(mut.ctx)

	histories := m.historyRepo.WithTx(tx)
	for _, tr := range mut.transitions {
		if err := histories.Save(&model.StateHistoryModel{
			ID:         uuid.New().String(),
			DocumentID: mut.Doc.ID,
			FromStatus: tr.from.Code(),
			ToStatus:   tr.to.Code(),
			Reason:     tr.reason,
			Operator:   mut.Actor,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("failed to save state history: %w", err)
		}
	}

	audits := m.auditRepo.WithTx(tx)
	for _, entry := range mut.audits {
		details, err := json.Marshal(entry.details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
		if err := audits.Save(&model.AuditLogModel{
			ID:           uuid.New().String(),
			UserID:       mut.Actor,
			Action:       entry.action,
			ResourceType: "document",
			ResourceID:   mut.Doc.Hash,
			RequestID:    meta.RequestID,
			IP:           meta.IP,
			UserAgent:    meta.UserAgent,
			Details:      details,
			CreatedAt:    now,
		}); err != nil {
			return fmt.Errorf("failed to save audit log: %w", err)
		}
	}

	events := m.eventRepo.WithTx(tx)
	for _, evt := range mut.events {
		em, err := evt.toModel()
		if err != nil {
			return err
		}
		if err := events.Save(em); err != nil {
			return fmt.Errorf("failed to save event: %w", err)
		}
	}
	return nil
}

// afterCommit 提交后推送事件并更新指标
func (m *DocumentManager) afterCommit(mut *Mutation) {
	for _, tr := range mut.transitions {
		metrics.RecordTransition(tr.from.Code(), tr.to.Code())
		m.logger.WithFields(logrus.Fields{
			"document": mut.Doc.Hash,
			"actor":    mut.Actor,
			"from":     tr.from.Code(),
			"to":       tr.to.Code(),
		}).Info("document status changed")
	}
	if m.dispatcher != nil && len(mut.events) > 0 {
		m.dispatcher.Publish(mut.events...)
	}
}

func lockKey(hash string) string {
	return "document:" + hash
}
