package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mautops/persuratan-gin/internal/model"
	"github.com/mautops/persuratan-gin/internal/utils"
	"github.com/mautops/persuratan-gin/internal/workflow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrConcurrentModification 文档在读取后被其他写入修改
	ErrConcurrentModification = errors.New("document was modified concurrently")
	// ErrInvalidFilter 查询条件无效
	ErrInvalidFilter = errors.New("invalid document filter")
)

// DocumentRepository 公文仓储接口
type DocumentRepository interface {
	// WithTx 返回绑定到事务的仓储
	WithTx(tx *gorm.DB) DocumentRepository
	Create(ctx context.Context, doc *workflow.Document) error
	FindByHash(ctx context.Context, hash string) (*workflow.Document, error)
	// FindByHashForUpdate 在 PostgreSQL 上使用 SELECT ... FOR UPDATE
	FindByHashForUpdate(ctx context.Context, hash string) (*workflow.Document, error)
	FindByHashes(ctx context.Context, hashes []string) ([]*workflow.Document, error)
	// Save 按版本号条件更新,版本不一致返回 ErrConcurrentModification
	Save(ctx context.Context, doc *workflow.Document) error
	Query(ctx context.Context, filter *DocumentFilter) ([]*workflow.Document, int64, error)
	CountByStatus(ctx context.Context) (map[workflow.Status]int64, error)
}

// DocumentFilter 公文列表查询过滤器
// 不同条件之间为 AND,多值条件内部为 OR
type DocumentFilter struct {
	ActorID     string
	Year        int
	Month       int
	ApplyPeriod bool
	DrafTypes   []int
	Sifat       []int
	Urgensi     []int
	Statuses    []int
	Keyword     string
	PendingFor  string // 仅返回该员工尚未签署的公文
	Page        int
	PageSize    int
	SortBy      string
	Order       string
}

// sortableDocumentFields 允许排序的字段
var sortableDocumentFields = map[string]bool{
	"created_at":      true,
	"updated_at":      true,
	"register_number": true,
	"hal":             true,
	"status":          true,
	"draf_type":       true,
	"sifat":           true,
	"urgensi":         true,
}

// documentRepository 公文仓储实现
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建公文仓储
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// WithTx 绑定事务
func (r *documentRepository) WithTx(tx *gorm.DB) DocumentRepository {
	return &documentRepository{db: tx}
}

// Create 创建公文及其收件人、签署人
func (r *documentRepository) Create(ctx context.Context, doc *workflow.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.Version = 1

	m, err := model.NewDocumentModel(doc)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// preload 按插入顺序预加载收件人与签署人
func preload(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Recipients", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Signers", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") })
}

// FindByHash 根据对外引用查找公文
func (r *documentRepository) FindByHash(ctx context.Context, hash string) (*workflow.Document, error) {
	return r.findByHash(ctx, hash, false)
}

// FindByHashForUpdate 查找并锁定公文行
func (r *documentRepository) FindByHashForUpdate(ctx context.Context, hash string) (*workflow.Document, error) {
	return r.findByHash(ctx, hash, true)
}

func (r *documentRepository) findByHash(ctx context.Context, hash string, forUpdate bool) (*workflow.Document, error) {
	query := preload(r.db.WithContext(ctx))
	// SQLite 不支持行锁,写事务本身是串行的
	if forUpdate && r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var m model.DocumentModel
	if err := query.Where("hash = ?", hash).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: document %s", workflow.ErrNotFound, hash)
		}
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return m.ToDomain()
}

// FindByHashes 批量查找公文,按输入顺序返回,缺失的引用被跳过
func (r *documentRepository) FindByHashes(ctx context.Context, hashes []string) ([]*workflow.Document, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	var models []model.DocumentModel
	if err := preload(r.db.WithContext(ctx)).Where("hash IN ?", hashes).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}

	byHash := make(map[string]*workflow.Document, len(models))
	for i := range models {
		d, err := models[i].ToDomain()
		if err != nil {
			return nil, err
		}
		byHash[d.Hash] = d
	}
	docs := make([]*workflow.Document, 0, len(models))
	for _, h := range hashes {
		if d, ok := byHash[h]; ok {
			docs = append(docs, d)
			delete(byHash, h)
		}
	}
	return docs, nil
}

// Save 保存公文聚合
// 收件人和签署人整体替换,主记录按版本号条件更新
func (r *documentRepository) Save(ctx context.Context, doc *workflow.Document) error {
	m, err := model.NewDocumentModel(doc)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.DocumentModel{}).
			Where("id = ? AND version = ?", m.ID, doc.Version).
			Updates(map[string]interface{}{
				"register_number":    m.RegisterNumber,
				"hal":                m.Hal,
				"body":               m.Body,
				"draf_type":          m.DrafType,
				"sifat":              m.Sifat,
				"urgensi":            m.Urgensi,
				"status":             m.Status,
				"owner_pegawai_id":   m.OwnerPegawaiID,
				"sequential_signing": m.SequentialSigning,
				"artifact_ref":       m.ArtifactRef,
				"artifact_digest":    m.ArtifactDigest,
				"artifact_size":      m.ArtifactSize,
				"sealed_at":          m.SealedAt,
				"version":            doc.Version + 1,
				"updated_at":         now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update document: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrConcurrentModification, doc.Hash)
		}

		if err := tx.Where("document_id = ?", m.ID).Delete(&model.RecipientModel{}).Error; err != nil {
			return fmt.Errorf("failed to replace recipients: %w", err)
		}
		if len(m.Recipients) > 0 {
			if err := tx.Create(&m.Recipients).Error; err != nil {
				return fmt.Errorf("failed to replace recipients: %w", err)
			}
		}

		if err := tx.Where("document_id = ?", m.ID).Delete(&model.SignerModel{}).Error; err != nil {
			return fmt.Errorf("failed to replace signers: %w", err)
		}
		if len(m.Signers) > 0 {
			if err := tx.Create(&m.Signers).Error; err != nil {
				return fmt.Errorf("failed to replace signers: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	doc.Version++
	doc.UpdatedAt = now
	return nil
}

// Query 按过滤条件分页查询公文
func (r *documentRepository) Query(ctx context.Context, filter *DocumentFilter) ([]*workflow.Document, int64, error) {
	if filter == nil {
		filter = &DocumentFilter{}
	}
	scope := func(db *gorm.DB) *gorm.DB { return applyDocumentFilter(db, filter) }

	// 获取总数
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.DocumentModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	// 排序列走白名单,防止 SQL 注入
	orderBy, err := utils.OrderClause(filter.SortBy, filter.Order, sortableDocumentFields, "created_at")
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	// 应用分页
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	var models []model.DocumentModel
	err = preload(r.db.WithContext(ctx)).
		Scopes(scope).
		Order(orderBy).
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query documents: %w", err)
	}

	docs := make([]*workflow.Document, 0, len(models))
	for i := range models {
		d, err := models[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, d)
	}
	return docs, total, nil
}

// applyDocumentFilter 应用过滤条件
func applyDocumentFilter(db *gorm.DB, f *DocumentFilter) *gorm.DB {
	if f.ActorID != "" {
		// 所有人、创建人、签署人或收件人可见
		db = db.Where(
			"(owner_pegawai_id = ? OR created_by = ? OR id IN (?) OR id IN (?))",
			f.ActorID, f.ActorID,
			db.Session(&gorm.Session{NewDB: true}).Model(&model.SignerModel{}).Select("document_id").Where("signer_id = ?", f.ActorID),
			db.Session(&gorm.Session{NewDB: true}).Model(&model.RecipientModel{}).Select("document_id").Where("recipient_id = ?", f.ActorID),
		)
	}
	if f.ApplyPeriod {
		if f.Year > 0 {
			db = db.Where("period_year = ?", f.Year)
		}
		if f.Month > 0 {
			db = db.Where("period_month = ?", f.Month)
		}
	}
	if f.PendingFor != "" {
		db = db.Where("id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).Model(&model.SignerModel{}).Select("document_id").Where("signer_id = ? AND signed = ?", f.PendingFor, false),
		)
	}
	if len(f.DrafTypes) > 0 {
		db = db.Where("draf_type IN ?", f.DrafTypes)
	}
	if len(f.Sifat) > 0 {
		db = db.Where("sifat IN ?", f.Sifat)
	}
	if len(f.Urgensi) > 0 {
		db = db.Where("urgensi IN ?", f.Urgensi)
	}
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		like := "%" + escapeLike(strings.ToLower(kw)) + "%"
		db = db.Where("(LOWER(hal) LIKE ? ESCAPE '\\' OR LOWER(register_number) LIKE ? ESCAPE '\\')", like, like)
	}
	return db
}

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// CountByStatus 按状态统计公文数量
func (r *documentRepository) CountByStatus(ctx context.Context) (map[workflow.Status]int64, error) {
	var rows []struct {
		Status int
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&model.DocumentModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count documents by status: %w", err)
	}
	result := make(map[workflow.Status]int64, len(rows))
	for _, row := range rows {
		result[workflow.Status(row.Status)] = row.Count
	}
	return result, nil
}
