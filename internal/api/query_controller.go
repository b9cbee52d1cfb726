package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/persuratan-gin/internal/service"
)

// QueryController 查询控制器
type QueryController struct {
	queryService      service.QueryService
	statisticsService service.StatisticsService
	auditLogService   service.AuditLogService
}

// NewQueryController 创建查询控制器
func NewQueryController(
	queryService service.QueryService,
	statisticsService service.StatisticsService,
	auditLogService service.AuditLogService,
) *QueryController {
	return &QueryController{
		queryService:      queryService,
		statisticsService: statisticsService,
		auditLogService:   auditLogService,
	}
}

// ListDocuments 列出公文
// 支持期间、类型、性质、紧急程度、状态多条件过滤,以及分页排序
func (c *QueryController) ListDocuments(ctx *gin.Context) {
	var req service.ListDocumentsRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		_ = ctx.Error(WrapError(err, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	docs, total, err := c.queryService.ListDocuments(ctx.Request.Context(), ctx.GetString("user_id"), &req)
	if !handleServiceError(ctx, err, "list documents") {
		return
	}

	totalPage := int((total + int64(req.PageSize) - 1) / int64(req.PageSize))

	Paginated(ctx, docs, PaginationInfo{
		Page:      req.Page,
		PageSize:  req.PageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// GetHistory 获取状态历史
func (c *QueryController) GetHistory(ctx *gin.Context) {
	history, err := c.queryService.GetHistory(ctx.Request.Context(), ctx.Param("hash"))
	if !handleServiceError(ctx, err, "get history") {
		return
	}

	Success(ctx, history)
}

// GetAuditLogs 获取公文审计日志
func (c *QueryController) GetAuditLogs(ctx *gin.Context) {
	entries, err := c.auditLogService.ListByResource(ctx.Request.Context(), "document", ctx.Param("hash"))
	if !handleServiceError(ctx, err, "get audit logs") {
		return
	}

	Success(ctx, entries)
}

// StatisticsByStatus 按状态统计
func (c *QueryController) StatisticsByStatus(ctx *gin.Context) {
	stats, err := c.statisticsService.GetDocumentStatisticsByStatus()
	if !handleServiceError(ctx, err, "get statistics") {
		return
	}

	Success(ctx, stats)
}

// StatisticsByPeriod 按期间统计,默认当前年份
func (c *QueryController) StatisticsByPeriod(ctx *gin.Context) {
	year := time.Now().Year()
	if yearStr := ctx.Query("year"); yearStr != "" {
		parsed, err := strconv.Atoi(yearStr)
		if err != nil || parsed <= 0 {
			Error(ctx, http.StatusBadRequest, "invalid query parameters", "year must be a positive integer")
			return
		}
		year = parsed
	}

	stats, err := c.statisticsService.GetDocumentStatisticsByPeriod(year)
	if !handleServiceError(ctx, err, "get statistics") {
		return
	}

	Success(ctx, stats)
}

// SignatureStatistics 签署统计
func (c *QueryController) SignatureStatistics(ctx *gin.Context) {
	stats, err := c.statisticsService.GetSignatureStatistics()
	if !handleServiceError(ctx, err, "get statistics") {
		return
	}

	Success(ctx, stats)
}
