package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/persuratan-gin/internal/integration"
	"github.com/mautops/persuratan-gin/internal/utils"
	"github.com/mautops/persuratan-gin/internal/workflow"
)

// ErrInvalidRequest 请求参数无效
var ErrInvalidRequest = errors.New("invalid request")

// DocumentService 公文服务接口
type DocumentService interface {
	Create(ctx context.Context, actorID string, req *CreateDocumentRequest) (*DocumentView, error)
	Get(ctx context.Context, actorID, hash string) (*DocumentView, error)
	AddRecipient(ctx context.Context, actorID, hash string, req *RecipientRequest) (*DocumentView, error)
	Forward(ctx context.Context, actorID, hash string, req *ForwardRequest) (*DocumentView, error)
	Acknowledge(ctx context.Context, actorID, hash string, req *AcknowledgeRequest) (*DocumentView, error)
	RequireSigners(ctx context.Context, actorID, hash string, req *RequireSignersRequest) (*DocumentView, error)
	Route(ctx context.Context, actorID, hash string, req *RouteRequest) (*DocumentView, error)
	SignBatch(ctx context.Context, actorID string, req *SignBatchRequest) (*integration.BatchResult, error)
	Preview(ctx context.Context, hash string) ([]byte, error)
	Artifact(ctx context.Context, actorID, hash string) ([]byte, error)
	Packet(ctx context.Context, actorID string, req *PacketRequest) ([]byte, error)
}

// RecipientRequest 收件人请求
type RecipientRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"` // 收件人员工 ID
	Name        string `json:"name"`
	Jabatan     string `json:"jabatan"` // 职位
}

// CreateDocumentRequest 创建公文请求
// @Description 创建公文草稿的请求参数
type CreateDocumentRequest struct {
	RegisterNumber    string             `json:"register_number" example:"B-12/UN/III/2024"`
	Hal               string             `json:"hal" binding:"required" example:"Undangan Rapat Koordinasi"` // 公文标题
	DrafType          int                `json:"draf_type" binding:"required"`
	Sifat             int                `json:"sifat"`
	Urgensi           int                `json:"urgensi"`
	Body              string             `json:"body"`
	OwnerPegawaiID    string             `json:"owner_pegawai_id"` // 为空时为创建人
	PeriodYear        int                `json:"period_year"`
	PeriodMonth       int                `json:"period_month"`
	SequentialSigning bool               `json:"sequential_signing"`
	Recipients        []RecipientRequest `json:"recipients"`
	Signers           []string           `json:"signers"`
}

// ForwardRequest 转发请求
type ForwardRequest struct {
	FromRecipientID string           `json:"from_recipient_id"` // 为空时为当前员工
	Recipient       RecipientRequest `json:"recipient" binding:"required"`
}

// AcknowledgeRequest 收件状态请求
type AcknowledgeRequest struct {
	Flag        string `json:"flag" binding:"required,oneof=sent read responded"`
	RecipientID string `json:"recipient_id"` // 为空时为当前员工
}

// RequireSignersRequest 设置签署人请求
type RequireSignersRequest struct {
	SignerIDs  []string `json:"signer_ids" binding:"required"`
	Sequential bool     `json:"sequential"`
}

// RouteRequest 路由请求
type RouteRequest struct {
	Status int    `json:"status" binding:"required"` // 目标状态码
	Reason string `json:"reason"`
}

// SignBatchRequest 批量签署请求
// @Description 批量签署的请求参数,每个公文的结果单独返回
type SignBatchRequest struct {
	Hashes    []string `json:"hashes" binding:"required"`
	Text      string   `json:"text"` // 签章文字
	Page      int      `json:"page"` // 0 表示最后一页
	X         float64  `json:"x"`    // 距左下角的点数
	Y         float64  `json:"y"`
	Reference string   `json:"reference"` // 客户端引用
}

// PacketRequest 合并打包请求
type PacketRequest struct {
	Hashes []string `json:"hashes" binding:"required"`
}

// documentService 公文服务实现
type documentService struct {
	manager     *integration.DocumentManager
	coordinator *integration.SigningCoordinator
	sealer      *integration.SealPipeline
	auditLogSvc AuditLogService
	now         func() time.Time
}

// NewDocumentService 创建公文服务
func NewDocumentService(
	manager *integration.DocumentManager,
	coordinator *integration.SigningCoordinator,
	sealer *integration.SealPipeline,
	auditLogSvc AuditLogService,
) DocumentService {
	return &documentService{
		manager:     manager,
		coordinator: coordinator,
		sealer:      sealer,
		auditLogSvc: auditLogSvc,
		now:         time.Now,
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// recipientFrom 校验并转换收件人
func recipientFrom(req RecipientRequest) (workflow.Recipient, error) {
	if err := utils.ValidateID(req.RecipientID); err != nil {
		return workflow.Recipient{}, invalid("recipient_id: %v", err)
	}
	return workflow.Recipient{
		RecipientID: req.RecipientID,
		Name:        strings.TrimSpace(req.Name),
		Jabatan:     strings.TrimSpace(req.Jabatan),
	}, nil
}

// newHash 生成对外引用,与内部 ID 无关
func newHash() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Create 创建公文草稿
func (s *documentService) Create(ctx context.Context, actorID string, req *CreateDocumentRequest) (*DocumentView, error) {
	if err := utils.ValidateSubject(req.Hal); err != nil {
		return nil, invalid("hal: %v", err)
	}
	if err := utils.ValidateIDs(req.Signers); err != nil {
		return nil, invalid("signers: %v", err)
	}
	owner := req.OwnerPegawaiID
	if owner == "" {
		owner = actorID
	}
	if err := utils.ValidateID(owner); err != nil {
		return nil, invalid("owner_pegawai_id: %v", err)
	}

	now := s.now().UTC()
	doc := &workflow.Document{
		ID:                uuid.New().String(),
		Hash:              newHash(),
		RegisterNumber:    strings.TrimSpace(req.RegisterNumber),
		Hal:               strings.TrimSpace(req.Hal),
		DrafType:          req.DrafType,
		Sifat:             req.Sifat,
		Urgensi:           req.Urgensi,
		Status:            workflow.StatusDraft,
		CreatedBy:         actorID,
		OwnerPegawaiID:    owner,
		CreatedAt:         now,
		UpdatedAt:         now,
		PeriodYear:        req.PeriodYear,
		PeriodMonth:       req.PeriodMonth,
		SequentialSigning: req.SequentialSigning,
		Body:              req.Body,
	}
	if doc.PeriodYear == 0 {
		doc.PeriodYear = now.Year()
	}
	if doc.PeriodMonth == 0 {
		doc.PeriodMonth = int(now.Month())
	}
	if doc.PeriodMonth < 1 || doc.PeriodMonth > 12 {
		return nil, invalid("period_month must be between 1 and 12")
	}

	for _, r := range req.Recipients {
		recipient, err := recipientFrom(r)
		if err != nil {
			return nil, err
		}
		if err := doc.AddRecipient(recipient); err != nil {
			return nil, err
		}
	}
	if len(req.Signers) > 0 {
		if err := doc.RequireSigners(req.Signers, req.SequentialSigning); err != nil {
			return nil, err
		}
	}

	if err := s.manager.Create(ctx, doc, actorID); err != nil {
		return nil, err
	}
	return NewDocumentView(doc, actorID, s.coordinator.Policy()), nil
}

// Get 获取公文详情
func (s *documentService) Get(ctx context.Context, actorID, hash string) (*DocumentView, error) {
	doc, err := s.manager.Documents().FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return NewDocumentView(doc, actorID, s.coordinator.Policy()), nil
}

// mutate 执行变更并返回当前员工视角的视图
func (s *documentService) mutate(ctx context.Context, actorID, hash string, fn func(mut *integration.Mutation) error) (*DocumentView, error) {
	doc, err := s.manager.WithDocument(ctx, hash, actorID, fn)
	if err != nil {
		return nil, err
	}
	return NewDocumentView(doc, actorID, s.coordinator.Policy()), nil
}

// AddRecipient 添加收件人
func (s *documentService) AddRecipient(ctx context.Context, actorID, hash string, req *RecipientRequest) (*DocumentView, error) {
	recipient, err := recipientFrom(*req)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, actorID, hash, func(mut *integration.Mutation) error {
		if err := mut.Doc.AddRecipient(recipient); err != nil {
			return err
		}
		mut.Touch()
		mut.Audit("add_recipient", map[string]interface{}{"recipient_id": recipient.RecipientID})
		mut.Emit(integration.EventRecipientAdded, map[string]interface{}{"recipient_id": recipient.RecipientID})
		return nil
	})
}

// Forward 转发给新的收件人
func (s *documentService) Forward(ctx context.Context, actorID, hash string, req *ForwardRequest) (*DocumentView, error) {
	recipient, err := recipientFrom(req.Recipient)
	if err != nil {
		return nil, err
	}
	from := req.FromRecipientID
	if from == "" {
		from = actorID
	}
	return s.mutate(ctx, actorID, hash, func(mut *integration.Mutation) error {
		if err := mut.Doc.Forward(from, recipient); err != nil {
			return err
		}
		mut.Touch()
		mut.Audit("forward", map[string]interface{}{"from": from, "to": recipient.RecipientID})
		mut.Emit(integration.EventRecipientForwarded, map[string]interface{}{"from": from, "to": recipient.RecipientID})
		return nil
	})
}

// Acknowledge 更新收件状态,重复设置不产生写入
func (s *documentService) Acknowledge(ctx context.Context, actorID, hash string, req *AcknowledgeRequest) (*DocumentView, error) {
	recipientID := req.RecipientID
	if recipientID == "" {
		recipientID = actorID
	}
	return s.mutate(ctx, actorID, hash, func(mut *integration.Mutation) error {
		var (
			changed bool
			err     error
		)
		switch req.Flag {
		case "sent":
			changed, err = mut.Doc.MarkSent(recipientID)
		case "read":
			changed, err = mut.Doc.MarkRead(recipientID)
		case "responded":
			changed, err = mut.Doc.MarkResponded(recipientID)
		default:
			return invalid("unknown flag %q", req.Flag)
		}
		if err != nil || !changed {
			return err
		}
		mut.Touch()
		mut.Audit("mark_"+req.Flag, map[string]interface{}{"recipient_id": recipientID})
		mut.Emit(integration.EventRecipientAcknowledged, map[string]interface{}{"recipient_id": recipientID, "flag": req.Flag})
		return nil
	})
}

// RequireSigners 设置签署人
func (s *documentService) RequireSigners(ctx context.Context, actorID, hash string, req *RequireSignersRequest) (*DocumentView, error) {
	if err := utils.ValidateIDs(req.SignerIDs); err != nil {
		return nil, invalid("signer_ids: %v", err)
	}
	return s.mutate(ctx, actorID, hash, func(mut *integration.Mutation) error {
		if err := mut.Doc.RequireSigners(req.SignerIDs, req.Sequential); err != nil {
			return err
		}
		mut.Touch()
		mut.Audit("require_signers", map[string]interface{}{"signers": req.SignerIDs, "sequential": req.Sequential})
		mut.Emit(integration.EventSignersRequired, map[string]interface{}{"signers": req.SignerIDs})
		return nil
	})
}

// Route 执行路由状态流转
// 进入待签署时签署人已全部签署则立即封存
func (s *documentService) Route(ctx context.Context, actorID, hash string, req *RouteRequest) (*DocumentView, error) {
	to, err := workflow.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, actorID, hash, func(mut *integration.Mutation) error {
		from := mut.Doc.Status
		if err := mut.Route(to, req.Reason); err != nil {
			return err
		}
		mut.Audit("route", map[string]interface{}{"from": from.Code(), "to": to.Code(), "reason": req.Reason})
		mut.Emit(integration.EventDocumentRouted, map[string]interface{}{"from": from.Code(), "to": to.Code()})

		if to != workflow.StatusReadyToSign || mut.Doc.AggregateStatus() != workflow.SignerStatusSigned {
			return nil
		}
		if _, err := mut.AdvanceOnFullSignature(); err != nil {
			return err
		}
		_, err := s.sealer.Seal(mut.Context(), mut)
		return err
	})
}

// SignBatch 批量签署
func (s *documentService) SignBatch(ctx context.Context, actorID string, req *SignBatchRequest) (*integration.BatchResult, error) {
	if len(req.Hashes) == 0 {
		return nil, invalid("hashes must not be empty")
	}
	if req.Page < 0 {
		return nil, invalid("page must not be negative")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = actorID
	}
	payload := workflow.SignaturePayload{
		Text:      text,
		Position:  workflow.Position{Page: req.Page, X: req.X, Y: req.Y},
		Reference: req.Reference,
	}
	return s.coordinator.SignBatch(ctx, actorID, req.Hashes, payload)
}

// Preview 渲染当前内容,不落库
func (s *documentService) Preview(ctx context.Context, hash string) ([]byte, error) {
	doc, err := s.manager.Documents().FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return s.sealer.Render(ctx, doc)
}

// Artifact 下载封存文件
func (s *documentService) Artifact(ctx context.Context, actorID, hash string) ([]byte, error) {
	doc, err := s.manager.Documents().FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	data, err := s.sealer.Load(ctx, doc)
	if err != nil {
		return nil, err
	}
	if s.auditLogSvc != nil {
		_ = s.auditLogSvc.RecordAction(ctx, actorID, "download", "document", hash, map[string]interface{}{"digest": doc.Artifact.Digest})
	}
	return data, nil
}

// Packet 合并多份公文
func (s *documentService) Packet(ctx context.Context, actorID string, req *PacketRequest) ([]byte, error) {
	hashes := uniqueOrdered(req.Hashes)
	if err := utils.ValidateIDs(hashes); err != nil {
		return nil, invalid("hashes: %v", err)
	}
	docs, err := s.manager.Documents().FindByHashes(ctx, hashes)
	if err != nil {
		return nil, err
	}
	if len(docs) != len(hashes) {
		return nil, fmt.Errorf("%w: some documents do not exist", workflow.ErrNotFound)
	}
	packet, err := s.sealer.ComposePacket(ctx, docs)
	if err != nil {
		return nil, err
	}
	if s.auditLogSvc != nil {
		for _, doc := range docs {
			_ = s.auditLogSvc.RecordAction(ctx, actorID, "packet", "document", doc.Hash, map[string]interface{}{"documents": len(hashes)})
		}
	}
	return packet, nil
}

// uniqueOrdered 去重并保持顺序
func uniqueOrdered(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
