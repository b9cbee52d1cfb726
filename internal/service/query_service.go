package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mautops/persuratan-gin/internal/repository"
	"github.com/mautops/persuratan-gin/internal/workflow"
	"gorm.io/gorm"
)

// maxPageSize 单页最大数量
const maxPageSize = 100

// QueryService 查询服务接口
type QueryService interface {
	ListDocuments(ctx context.Context, actorID string, req *ListDocumentsRequest) ([]*DocumentView, int64, error)
	GetHistory(ctx context.Context, hash string) ([]*StateHistory, error)
}

// ListDocumentsRequest 公文列表查询条件
// 多值参数可重复传递,例如 draf_type=1&draf_type=2
type ListDocumentsRequest struct {
	Year        int    `form:"year"`
	Month       int    `form:"month"`
	ApplyPeriod bool   `form:"apply_period"`
	DrafTypes   []int  `form:"draf_type"`
	Sifat       []int  `form:"sifat"`
	Urgensi     []int  `form:"urgensi"`
	Statuses    []int  `form:"status"`
	Keyword     string `form:"keyword"`
	PendingOnly bool   `form:"pending_only"` // 仅显示待我签署
	All         bool   `form:"all"`          // 不限参与人
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
	SortBy      string `form:"sort_by"`
	Order       string `form:"order"`
}

// StateHistory 状态历史
type StateHistory struct {
	FromStatus int       `json:"from_status"`
	ToStatus   int       `json:"to_status"`
	ToName     string    `json:"to_name"`
	Reason     string    `json:"reason,omitempty"`
	Operator   string    `json:"operator"`
	CreatedAt  time.Time `json:"created_at"`
}

// queryService 查询服务实现
type queryService struct {
	docRepo     repository.DocumentRepository
	historyRepo repository.StateHistoryRepository
	policy      workflow.Policy
}

// NewQueryService 创建查询服务
func NewQueryService(db *gorm.DB, policy workflow.Policy) QueryService {
	return &queryService{
		docRepo:     repository.NewDocumentRepository(db),
		historyRepo: repository.NewStateHistoryRepository(db),
		policy:      policy,
	}
}

// ListDocuments 列出当前员工可见的公文
func (s *queryService) ListDocuments(ctx context.Context, actorID string, req *ListDocumentsRequest) ([]*DocumentView, int64, error) {
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}
	if req.ApplyPeriod && (req.Month < 0 || req.Month > 12) {
		return nil, 0, invalid("month must be between 1 and 12")
	}

	filter := &repository.DocumentFilter{
		Year:        req.Year,
		Month:       req.Month,
		ApplyPeriod: req.ApplyPeriod,
		DrafTypes:   req.DrafTypes,
		Sifat:       req.Sifat,
		Urgensi:     req.Urgensi,
		Statuses:    req.Statuses,
		Keyword:     req.Keyword,
		Page:        req.Page,
		PageSize:    req.PageSize,
		SortBy:      req.SortBy,
		Order:       req.Order,
	}
	if !req.All {
		filter.ActorID = actorID
	}
	if req.PendingOnly {
		filter.PendingFor = actorID
	}

	docs, total, err := s.docRepo.Query(ctx, filter)
	if errors.Is(err, repository.ErrInvalidFilter) {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err != nil {
		return nil, 0, err
	}

	views := make([]*DocumentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, NewDocumentView(doc, actorID, s.policy))
	}
	return views, total, nil
}

// GetHistory 获取状态历史
func (s *queryService) GetHistory(ctx context.Context, hash string) ([]*StateHistory, error) {
	doc, err := s.docRepo.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	histories, err := s.historyRepo.FindByDocumentID(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	result := make([]*StateHistory, 0, len(histories))
	for _, h := range histories {
		result = append(result, &StateHistory{
			FromStatus: h.FromStatus,
			ToStatus:   h.ToStatus,
			ToName:     workflow.Status(h.ToStatus).Name(),
			Reason:     h.Reason,
			Operator:   h.Operator,
			CreatedAt:  h.CreatedAt,
		})
	}
	return result, nil
}
