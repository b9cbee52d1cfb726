package service

import (
	"fmt"

	"github.com/mautops/persuratan-gin/internal/model"
	"github.com/mautops/persuratan-gin/internal/workflow"
	"gorm.io/gorm"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	GetDocumentStatisticsByStatus() ([]*DocumentStatisticsByStatus, error)
	GetDocumentStatisticsByPeriod(year int) ([]*DocumentStatisticsByPeriod, error)
	GetSignatureStatistics() (*SignatureStatistics, error)
}

// DocumentStatisticsByStatus 按状态统计
type DocumentStatisticsByStatus struct {
	Status     int    `json:"status"`
	StatusName string `json:"status_name"`
	Count      int64  `json:"count"`
}

// DocumentStatisticsByPeriod 按期间统计
type DocumentStatisticsByPeriod struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

// SignatureStatistics 签署统计
type SignatureStatistics struct {
	RequiredSignatures int64   `json:"required_signatures"`
	AppliedSignatures  int64   `json:"applied_signatures"`
	SealedDocuments    int64   `json:"sealed_documents"`
	CompletionRate     float64 `json:"completion_rate"` // 百分比
}

// statisticsService 统计服务实现
type statisticsService struct {
	db *gorm.DB
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetDocumentStatisticsByStatus 按状态统计公文
func (s *statisticsService) GetDocumentStatisticsByStatus() ([]*DocumentStatisticsByStatus, error) {
	var results []struct {
		Status int
		Count  int64
	}

	err := s.db.Model(&model.DocumentModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Order("status ASC").
		Scan(&results).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get document statistics by status: %w", err)
	}

	stats := make([]*DocumentStatisticsByStatus, 0, len(results))
	for _, r := range results {
		stats = append(stats, &DocumentStatisticsByStatus{
			Status:     r.Status,
			StatusName: workflow.Status(r.Status).Name(),
			Count:      r.Count,
		})
	}

	return stats, nil
}

// GetDocumentStatisticsByPeriod 按期间统计公文,year 为 0 时统计全部年份
func (s *statisticsService) GetDocumentStatisticsByPeriod(year int) ([]*DocumentStatisticsByPeriod, error) {
	var results []struct {
		PeriodYear  int
		PeriodMonth int
		Count       int64
	}

	query := s.db.Model(&model.DocumentModel{}).
		Select("period_year, period_month, COUNT(*) as count")
	if year > 0 {
		query = query.Where("period_year = ?", year)
	}
	err := query.
		Group("period_year, period_month").
		Order("period_year DESC, period_month DESC").
		Scan(&results).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get document statistics by period: %w", err)
	}

	stats := make([]*DocumentStatisticsByPeriod, 0, len(results))
	for _, r := range results {
		stats = append(stats, &DocumentStatisticsByPeriod{
			Year:  r.PeriodYear,
			Month: r.PeriodMonth,
			Count: r.Count,
		})
	}

	return stats, nil
}

// GetSignatureStatistics 获取签署统计
func (s *statisticsService) GetSignatureStatistics() (*SignatureStatistics, error) {
	var required int64
	if err := s.db.Model(&model.SignerModel{}).Count(&required).Error; err != nil {
		return nil, fmt.Errorf("failed to count signers: %w", err)
	}

	var applied int64
	err := s.db.Model(&model.SignerModel{}).
		Where("signed = ?", true).
		Count(&applied).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count applied signatures: %w", err)
	}

	var sealed int64
	err = s.db.Model(&model.DocumentModel{}).
		Where("artifact_ref <> ?", "").
		Count(&sealed).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count sealed documents: %w", err)
	}

	rate := 0.0
	if required > 0 {
		rate = float64(applied) / float64(required) * 100
	}

	return &SignatureStatistics{
		RequiredSignatures: required,
		AppliedSignatures:  applied,
		SealedDocuments:    sealed,
		CompletionRate:     rate,
	}, nil
}
