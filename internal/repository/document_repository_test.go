package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mautops/persuratan-gin/internal/config"
	"github.com/mautops/persuratan-gin/internal/database"
	"github.com/mautops/persuratan-gin/internal/repository"
	"github.com/mautops/persuratan-gin/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: "file::memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newDocument(id string) *workflow.Document {
	return &workflow.Document{
		ID:             id,
		Hash:           "h-" + id,
		RegisterNumber: "B-" + id,
		Hal:            "Undangan " + id,
		DrafType:       1,
		Sifat:          1,
		Urgensi:        1,
		Status:         workflow.StatusDraft,
		CreatedBy:      "p-001",
		OwnerPegawaiID: "p-001",
		PeriodYear:     2024,
		PeriodMonth:    3,
	}
}

// TestDocumentRepository_CreateAndFind 测试创建与查找
func TestDocumentRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewDocumentRepository(db)
	ctx := context.Background()

	doc := newDocument("doc-001")
	require.NoError(t, doc.AddRecipient(workflow.Recipient{RecipientID: "r2", Name: "Sari"}))
	require.NoError(t, doc.AddRecipient(workflow.Recipient{RecipientID: "r1", Name: "Budi"}))
	require.NoError(t, doc.RequireSigners([]string{"s2", "s1"}, true))
	require.NoError(t, repo.Create(ctx, doc))
	assert.Equal(t, 1, doc.Version)

	found, err := repo.FindByHash(ctx, "h-doc-001")
	require.NoError(t, err)
	assert.Equal(t, "doc-001", found.ID)
	assert.Equal(t, workflow.StatusDraft, found.Status)
	require.Len(t, found.Recipients, 2)
	// 保持插入顺序
	assert.Equal(t, "r2", found.Recipients[0].RecipientID)
	require.Len(t, found.Signers, 2)
	assert.Equal(t, "s2", found.Signers[0].SignerID)
	assert.True(t, found.SequentialSigning)

	_, err = repo.FindByHash(ctx, "missing")
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	// 对外引用与 ID 相同时拒绝创建
	bad := newDocument("doc-002")
	bad.Hash = bad.ID
	assert.Error(t, repo.Create(ctx, bad))
}

// TestDocumentRepository_Save 测试保存聚合
func TestDocumentRepository_Save(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewDocumentRepository(db)
	ctx := context.Background()

	doc := newDocument("doc-001")
	require.NoError(t, doc.AddRecipient(workflow.Recipient{RecipientID: "r1"}))
	require.NoError(t, repo.Create(ctx, doc))

	loaded, err := repo.FindByHash(ctx, doc.Hash)
	require.NoError(t, err)
	_, err = loaded.MarkRead("r1")
	require.NoError(t, err)
	require.NoError(t, loaded.RequireSigners([]string{"s1"}, false))
	require.NoError(t, loaded.Route(workflow.StatusReadyToSign))
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	payload := workflow.SignaturePayload{Text: "Kepala", Position: workflow.Position{Page: 1, X: 10, Y: 20}}
	_, err = loaded.ApplySignature("s1", payload, now, workflow.Policy{})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, loaded))
	assert.Equal(t, 2, loaded.Version)

	reloaded, err := repo.FindByHash(ctx, doc.Hash)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusReadyToSign, reloaded.Status)
	assert.True(t, reloaded.Recipient("r1").Read)
	require.Len(t, reloaded.Signers, 1)
	assert.True(t, reloaded.Signers[0].Signed)
	assert.Equal(t, payload, reloaded.Signers[0].Payload)
	assert.Equal(t, workflow.SignerStatusSigned, reloaded.AggregateStatus())
}

// TestDocumentRepository_SaveConcurrentModification 测试乐观锁
func TestDocumentRepository_SaveConcurrentModification(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewDocumentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newDocument("doc-001")))
	first, err := repo.FindByHash(ctx, "h-doc-001")
	require.NoError(t, err)
	second, err := repo.FindByHash(ctx, "h-doc-001")
	require.NoError(t, err)

	require.NoError(t, first.Route(workflow.StatusSubmitted))
	require.NoError(t, repo.Save(ctx, first))

	require.NoError(t, second.Route(workflow.StatusReadyToSign))
	err = repo.Save(ctx, second)
	assert.ErrorIs(t, err, repository.ErrConcurrentModification)

	current, err := repo.FindByHash(ctx, "h-doc-001")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSubmitted, current.Status)
}

// TestDocumentRepository_WithTxRollback 测试事务回滚
func TestDocumentRepository_WithTxRollback(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewDocumentRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newDocument("doc-001")))

	err := db.Transaction(func(tx *gorm.DB) error {
		txRepo := repo.WithTx(tx)
		doc, err := txRepo.FindByHashForUpdate(ctx, "h-doc-001")
		if err != nil {
			return err
		}
		if err := doc.Route(workflow.StatusSubmitted); err != nil {
			return err
		}
		if err := txRepo.Save(ctx, doc); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	doc, err := repo.FindByHash(ctx, "h-doc-001")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDraft, doc.Status)
	assert.Equal(t, 1, doc.Version)
}

// TestDocumentRepository_Query 测试列表查询
func TestDocumentRepository_Query(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewDocumentRepository(db)
	ctx := context.Background()

	a := newDocument("a")
	a.DrafType, a.Sifat = 1, 1
	b := newDocument("b")
	b.DrafType, b.Sifat = 2, 1
	b.Hal = "Nota Dinas anggaran"
	c := newDocument("c")
	c.DrafType, c.Sifat = 3, 2
	c.PeriodMonth = 4
	d := newDocument("d")
	d.CreatedBy, d.OwnerPegawaiID = "p-009", "p-009"
	require.NoError(t, d.RequireSigners([]string{"p-001"}, false))
	e := newDocument("e")
	e.CreatedBy, e.OwnerPegawaiID = "p-009", "p-009"
	for _, doc := range []*workflow.Document{a, b, c, d, e} {
		require.NoError(t, repo.Create(ctx, doc))
	}

	hashes := func(docs []*workflow.Document) []string {
		var out []string
		for _, doc := range docs {
			out = append(out, doc.Hash)
		}
		return out
	}

	// 多值条件内部为 OR,不同条件之间为 AND
	docs, total, err := repo.Query(ctx, &repository.DocumentFilter{
		DrafTypes: []int{1, 2, 3},
		Sifat:     []int{1},
		SortBy:    "register_number",
		Order:     "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, []string{"h-a", "h-b", "h-d", "h-e"}, hashes(docs))

	// 期间过滤仅在 ApplyPeriod 时生效
	_, total, err = repo.Query(ctx, &repository.DocumentFilter{Year: 2024, Month: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	docs, _, err = repo.Query(ctx, &repository.DocumentFilter{Year: 2024, Month: 4, ApplyPeriod: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"h-c"}, hashes(docs))

	// 参与人过滤包含签署人
	_, total, err = repo.Query(ctx, &repository.DocumentFilter{ActorID: "p-001"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	// 待签署
	docs, _, err = repo.Query(ctx, &repository.DocumentFilter{PendingFor: "p-001"})
	require.NoError(t, err)
	assert.Equal(t, []string{"h-d"}, hashes(docs))

	// 关键字
	docs, _, err = repo.Query(ctx, &repository.DocumentFilter{Keyword: "ANGGARAN"})
	require.NoError(t, err)
	assert.Equal(t, []string{"h-b"}, hashes(docs))

	// 分页
	docs, total, err = repo.Query(ctx, &repository.DocumentFilter{Page: 2, PageSize: 2, SortBy: "register_number", Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, []string{"h-c", "h-d"}, hashes(docs))

	// 按公文类型与性质排序,方向忽略大小写和空白
	docs, _, err = repo.Query(ctx, &repository.DocumentFilter{DrafTypes: []int{2, 3}, SortBy: "draf_type", Order: " Desc "})
	require.NoError(t, err)
	assert.Equal(t, []string{"h-c", "h-b"}, hashes(docs))
	docs, _, err = repo.Query(ctx, &repository.DocumentFilter{SortBy: "sifat"})
	require.NoError(t, err)
	require.Len(t, docs, 5)
	assert.Equal(t, "h-c", docs[0].Hash)

	// 非法排序字段与方向
	_, _, err = repo.Query(ctx, &repository.DocumentFilter{Order: "sideways"})
	assert.ErrorIs(t, err, repository.ErrInvalidFilter)
	_, _, err = repo.Query(ctx, &repository.DocumentFilter{SortBy: "id; DROP TABLE documents"})
	assert.Error(t, err)
	_, _, err = repo.Query(ctx, &repository.DocumentFilter{SortBy: "body"})
	assert.Error(t, err)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), counts[workflow.StatusDraft])
}

// TestDocumentRepository_FindByHashes 测试批量查找
func TestDocumentRepository_FindByHashes(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewDocumentRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newDocument("a")))
	require.NoError(t, repo.Create(ctx, newDocument("b")))

	docs, err := repo.FindByHashes(ctx, []string{"h-b", "missing", "h-a"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "h-b", docs[0].Hash)
	assert.Equal(t, "h-a", docs[1].Hash)
}
