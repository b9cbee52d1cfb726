package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/persuratan-gin/internal/service"
	"github.com/mautops/persuratan-gin/internal/utils"
)

// DocumentController 公文控制器
type DocumentController struct {
	documentService service.DocumentService
}

// NewDocumentController 创建公文控制器
func NewDocumentController(documentService service.DocumentService) *DocumentController {
	return &DocumentController{
		documentService: documentService,
	}
}

// documentHash 读取并校验路径中的 hash
func documentHash(ctx *gin.Context) (string, bool) {
	hash := ctx.Param("hash")
	if err := utils.ValidateID(hash); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid document hash", err.Error())
		return "", false
	}
	return hash, true
}

// bind 绑定 JSON 请求体
func bind(ctx *gin.Context, req interface{}) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		_ = ctx.Error(WrapError(err, http.StatusBadRequest, "invalid request"))
		return false
	}
	return true
}

// Create 创建公文草稿
func (c *DocumentController) Create(ctx *gin.Context) {
	var req service.CreateDocumentRequest
	if !bind(ctx, &req) {
		return
	}

	doc, err := c.documentService.Create(ctx.Request.Context(), ctx.GetString("user_id"), &req)
	if !handleServiceError(ctx, err, "create document") {
		return
	}

	Success(ctx, doc)
}

// Get 获取公文详情
func (c *DocumentController) Get(ctx *gin.Context) {
	hash, ok := documentHash(ctx)
	if !ok {
		return
	}

	doc, err := c.documentService.Get(ctx.Request.Context(), ctx.GetString("user_id"), hash)
	if !handleServiceError(ctx, err, "get document") {
		return
	}

	Success(ctx, doc)
}

// AddRecipient 添加收件人
func (c *DocumentController) AddRecipient(ctx *gin.Context) {
	hash, ok := documentHash(ctx)
	if !ok {
		return
	}
	var req service.RecipientRequest
	if !bind(ctx, &req) {
		return
	}

	doc, err := c.documentService.AddRecipient(ctx.Request.Context(), ctx.GetString("user_id"), hash, &req)
	if !handleServiceError(ctx, err, "add recipient") {
		return
	}

	Success(ctx, doc)
}

// Forward 转发给新的收件人
func (c *DocumentController) Forward(ctx *gin.Context) {
	hash, ok := documentHash(ctx)
	if !ok {
		return
	}
	var req service.ForwardRequest
	if !bind(ctx, &req) {
		return
	}

	doc, err := c.documentService.Forward(ctx.Request.Context(), ctx.GetString("user_id"), hash, &req)
	if !handleServiceError(ctx, err, "forward document") {
		return
	}

	Success(ctx, doc)
}

// Acknowledge 设置收件状态: sent, read, responded
func (c *DocumentController) Acknowledge(ctx *gin.Context) {
	hash, ok := documentHash(ctx)
	if !ok {
		return
	}
	var req service.AcknowledgeRequest
	if !bind(ctx, &req) {
		return
	}

	doc, err := c.documentService.Acknowledge(ctx.Request.Context(), ctx.GetString("user_id"), hash, &req)
	if !handleServiceError(ctx, err, "acknowledge document") {
		return
	}

	Success(ctx, doc)
}

// RequireSigners 设置签署人
func (c *DocumentController) RequireSigners(ctx *gin.Context) {
	hash, ok := documentHash(ctx)
	if !ok {
		return
	}
	var req service.RequireSignersRequest
	if !bind(ctx, &req) {
		return
	}

	doc, err := c.documentService.RequireSigners(ctx.Request.Context(), ctx.GetString("user_id"), hash, &req)
	if !handleServiceError(ctx, err, "require signers") {
		return
	}

	Success(ctx, doc)
}

// Route 变更公文状态
func (c *DocumentController) Route(ctx *gin.Context) {
	hash, ok := documentHash(ctx)
	if !ok {
		return
	}
	var req service.RouteRequest
	if !bind(ctx, &req) {
		return
	}

	doc, err := c.documentService.Route(ctx.Request.Context(), ctx.GetString("user_id"), hash, &req)
	if !handleServiceError(ctx, err, "route document") {
		return
	}

	Success(ctx, doc)
}

// SignBatch 批量签署
// 单个公文失败时整体仍返回 200,结果在每项的 outcome 中
func (c *DocumentController) SignBatch(ctx *gin.Context) {
	var req service.SignBatchRequest
	if !bind(ctx, &req) {
		return
	}

	result, err := c.documentService.SignBatch(ctx.Request.Context(), ctx.GetString("user_id"), &req)
	if !handleServiceError(ctx, err, "sign documents") {
		return
	}

	Success(ctx, result)
}

// Preview 预览当前内容
func (c *DocumentController) Preview(ctx *gin.Context) {
	hash, ok := documentHash(ctx)
	if !ok {
		return
	}

	data, err := c.documentService.Preview(ctx.Request.Context(), hash)
	if !handleServiceError(ctx, err, "render preview") {
		return
	}

	PDF(ctx, hash+"-preview.pdf", data)
}

// Artifact 下载封存文件
func (c *DocumentController) Artifact(ctx *gin.Context) {
	hash, ok := documentHash(ctx)
	if !ok {
		return
	}

	data, err := c.documentService.Artifact(ctx.Request.Context(), ctx.GetString("user_id"), hash)
	if !handleServiceError(ctx, err, "load artifact") {
		return
	}

	PDF(ctx, hash+".pdf", data)
}

// Packet 合并多份公文为一个文件
func (c *DocumentController) Packet(ctx *gin.Context) {
	var req service.PacketRequest
	if !bind(ctx, &req) {
		return
	}

	data, err := c.documentService.Packet(ctx.Request.Context(), ctx.GetString("user_id"), &req)
	if !handleServiceError(ctx, err, "compose packet") {
		return
	}

	PDF(ctx, "packet.pdf", data)
}
