package service

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/persuratan-gin/internal/config"
	"github.com/mautops/persuratan-gin/internal/database"
	"github.com/mautops/persuratan-gin/internal/integration"
	"github.com/mautops/persuratan-gin/internal/repository"
	"github.com/mautops/persuratan-gin/internal/storage"
	"github.com/mautops/persuratan-gin/internal/workflow"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubRenderer 输出可预测内容的渲染器
type stubRenderer struct{}

func (stubRenderer) RenderBody(ctx context.Context, doc *workflow.Document) ([]byte, error) {
	return []byte("%PDF " + doc.Hal), nil
}

func (stubRenderer) MergeSignature(ctx context.Context, artifact []byte, sig workflow.SignatureMark, pos workflow.Position) ([]byte, error) {
	return append(artifact, []byte(" ["+sig.Text+"]")...), nil
}

func (stubRenderer) ImportPages(ctx context.Context, source []byte) ([][]byte, error) {
	return [][]byte{source}, nil
}

func (stubRenderer) Compose(ctx context.Context, parts [][]byte) ([]byte, error) {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

type services struct {
	db        *gorm.DB
	documents DocumentService
	queries   QueryService
	stats     StatisticsService
	audit     AuditLogService
}

func setupServices(t *testing.T, policy workflow.Policy) *services {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: "file::memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	manager := integration.NewDocumentManager(db, integration.DocumentManagerOptions{Logger: logger})
	sealer := integration.NewSealPipeline(stubRenderer{}, store, time.Second, logger)
	coordinator := integration.NewSigningCoordinator(manager, sealer, integration.SigningCoordinatorOptions{
		Policy: policy, Workers: 2, MaxBatchSize: 50, Logger: logger,
	})
	audit := NewAuditLogService(repository.NewAuditLogRepository(db))

	return &services{
		db:        db,
		documents: NewDocumentService(manager, coordinator, sealer, audit),
		queries:   NewQueryService(db, policy),
		stats:     NewStatisticsService(db),
		audit:     audit,
	}
}

func createDraft(t *testing.T, s *services, actor string, signers ...string) *DocumentView {
	t.Helper()
	view, err := s.documents.Create(context.Background(), actor, &CreateDocumentRequest{
		RegisterNumber: "B-1/2024",
		Hal:            "Undangan Rapat",
		DrafType:       1,
		Sifat:          1,
		Urgensi:        2,
		PeriodYear:     2024,
		PeriodMonth:    3,
		Recipients:     []RecipientRequest{{RecipientID: "r1", Name: "Budi"}, {RecipientID: "r2", Name: "Sari"}},
		Signers:        signers,
	})
	require.NoError(t, err)
	return view
}

// TestDocumentService_Create 测试创建公文
func TestDocumentService_Create(t *testing.T) {
	s := setupServices(t, workflow.Policy{})
	ctx := context.Background()

	view := createDraft(t, s, "p-001", "s1")
	assert.Len(t, view.Hash, 32)
	assert.Equal(t, 1, view.Status)
	assert.Equal(t, "p-001", view.Owner)
	assert.Equal(t, 0, view.SignerStatus)
	assert.Equal(t, 2, view.Unacknowledged)
	assert.False(t, view.CanSign)

	got, err := s.documents.Get(ctx, "r1", view.Hash)
	require.NoError(t, err)
	assert.Equal(t, "Undangan Rapat", got.Hal)
	assert.False(t, got.ReadUser)

	_, err = s.documents.Create(ctx, "p-001", &CreateDocumentRequest{Hal: "<script>x</script>", DrafType: 1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.documents.Create(ctx, "p-001", &CreateDocumentRequest{
		Hal: "Nota", DrafType: 1,
		Recipients: []RecipientRequest{{RecipientID: "r1"}, {RecipientID: "r1"}},
	})
	assert.ErrorIs(t, err, workflow.ErrDuplicateRecipient)

	_, err = s.documents.Get(ctx, "p-001", "missing")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

// TestDocumentService_Recipients 测试收件人操作
func TestDocumentService_Recipients(t *testing.T) {
	s := setupServices(t, workflow.Policy{})
	ctx := context.Background()
	view := createDraft(t, s, "p-001")

	view, err := s.documents.Acknowledge(ctx, "r1", view.Hash, &AcknowledgeRequest{Flag: "read"})
	require.NoError(t, err)
	assert.True(t, view.ReadUser)
	assert.Equal(t, 1, view.Unacknowledged)
	version := view.Version

	// 重复设置不产生写入
	view, err = s.documents.Acknowledge(ctx, "r1", view.Hash, &AcknowledgeRequest{Flag: "read"})
	require.NoError(t, err)
	assert.Equal(t, version, view.Version)

	view, err = s.documents.Acknowledge(ctx, "p-001", view.Hash, &AcknowledgeRequest{Flag: "sent", RecipientID: "r2"})
	require.NoError(t, err)
	assert.True(t, view.Recipients[1].Sent)

	_, err = s.documents.Acknowledge(ctx, "p-001", view.Hash, &AcknowledgeRequest{Flag: "read", RecipientID: "nobody"})
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	view, err = s.documents.Forward(ctx, "r1", view.Hash, &ForwardRequest{Recipient: RecipientRequest{RecipientID: "r3", Name: "Andi"}})
	require.NoError(t, err)
	assert.Equal(t, 1, view.ForwardCount)
	assert.Equal(t, "r1", view.Recipients[2].ForwardedFrom)

	_, err = s.documents.AddRecipient(ctx, "p-001", view.Hash, &RecipientRequest{RecipientID: "r3"})
	assert.ErrorIs(t, err, workflow.ErrDuplicateRecipient)
}

// TestDocumentService_SignFlow 测试路由与签署
func TestDocumentService_SignFlow(t *testing.T) {
	s := setupServices(t, workflow.Policy{})
	ctx := context.Background()
	view := createDraft(t, s, "p-001")

	view, err := s.documents.RequireSigners(ctx, "p-001", view.Hash, &RequireSignersRequest{SignerIDs: []string{"s1", "s2", "s1"}})
	require.NoError(t, err)
	require.Len(t, view.Signers, 2)

	_, err = s.documents.Route(ctx, "p-001", view.Hash, &RouteRequest{Status: 99})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	view, err = s.documents.Route(ctx, "p-001", view.Hash, &RouteRequest{Status: 3, Reason: "submitted"})
	require.NoError(t, err)
	assert.Equal(t, 3, view.Status)
	view, err = s.documents.Route(ctx, "p-001", view.Hash, &RouteRequest{Status: 4})
	require.NoError(t, err)
	assert.Equal(t, "Siap Ditandatangani", view.StatusName)

	got, err := s.documents.Get(ctx, "s1", view.Hash)
	require.NoError(t, err)
	assert.True(t, got.CanSign)

	_, err = s.documents.SignBatch(ctx, "s1", &SignBatchRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	for _, signer := range []string{"s1", "s2"} {
		res, err := s.documents.SignBatch(ctx, signer, &SignBatchRequest{Hashes: []string{view.Hash}, Text: "TTD " + signer})
		require.NoError(t, err)
		assert.Equal(t, workflow.OutcomeSuccess, res.Results[0].Outcome)
	}

	got, err = s.documents.Get(ctx, "s1", view.Hash)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Status)
	assert.Equal(t, 1, got.SignerStatus)
	assert.True(t, got.Sealed)
	assert.False(t, got.CanSign)

	data, err := s.documents.Artifact(ctx, "s1", view.Hash)
	require.NoError(t, err)
	assert.Equal(t, "%PDF Undangan Rapat [TTD s1] [TTD s2]", string(data))

	history, err := s.queries.GetHistory(ctx, view.Hash)
	require.NoError(t, err)
	var codes []int
	for _, h := range history {
		codes = append(codes, h.ToStatus)
	}
	assert.Equal(t, []int{1, 3, 4, 5}, codes)

	entries, err := s.audit.ListByResource(ctx, "document", view.Hash)
	require.NoError(t, err)
	assert.Equal(t, "download", entries[0].Action)

	// 已签署后不能再修改签署人
	_, err = s.documents.RequireSigners(ctx, "p-001", view.Hash, &RequireSignersRequest{SignerIDs: []string{"s9"}})
	assert.ErrorIs(t, err, workflow.ErrAlreadyFinalized)
}

// TestDocumentService_OwnerSignsBeforeReady 测试所有人提前签署后路由封存
func TestDocumentService_OwnerSignsBeforeReady(t *testing.T) {
	s := setupServices(t, workflow.Policy{OwnerMaySignBeforeReady: true})
	ctx := context.Background()
	view := createDraft(t, s, "p-001", "p-001")

	res, err := s.documents.SignBatch(ctx, "p-001", &SignBatchRequest{Hashes: []string{view.Hash}})
	require.NoError(t, err)
	assert.Equal(t, workflow.OutcomeSuccess, res.Results[0].Outcome)
	assert.Equal(t, 1, res.Results[0].SignerStatus)
	assert.Equal(t, 1, res.Results[0].Status)
	assert.False(t, res.Results[0].Sealed)

	view, err = s.documents.Route(ctx, "p-001", view.Hash, &RouteRequest{Status: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, view.Status)
	assert.True(t, view.Sealed)
}

// TestDocumentService_Packet 测试合并打包
func TestDocumentService_Packet(t *testing.T) {
	s := setupServices(t, workflow.Policy{})
	ctx := context.Background()
	a := createDraft(t, s, "p-001")
	b := createDraft(t, s, "p-001")

	packet, err := s.documents.Packet(ctx, "p-001", &PacketRequest{Hashes: []string{a.Hash, b.Hash, a.Hash}})
	require.NoError(t, err)
	assert.Equal(t, "%PDF Undangan Rapat%PDF Undangan Rapat", string(packet))

	_, err = s.documents.Packet(ctx, "p-001", &PacketRequest{Hashes: []string{a.Hash, "missing"}})
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	preview, err := s.documents.Preview(ctx, a.Hash)
	require.NoError(t, err)
	assert.Equal(t, "%PDF Undangan Rapat", string(preview))
}

// TestQueryService_ListDocuments 测试列表查询
func TestQueryService_ListDocuments(t *testing.T) {
	s := setupServices(t, workflow.Policy{})
	ctx := context.Background()
	mine := createDraft(t, s, "p-001", "s1")
	createDraft(t, s, "p-002")

	views, total, err := s.queries.ListDocuments(ctx, "p-001", &ListDocumentsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, mine.Hash, views[0].Hash)

	// 收件人也可以看到
	_, total, err = s.queries.ListDocuments(ctx, "r1", &ListDocumentsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = s.queries.ListDocuments(ctx, "x", &ListDocumentsRequest{All: true, Sifat: []int{1}, Urgensi: []int{2, 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = s.queries.ListDocuments(ctx, "s1", &ListDocumentsRequest{PendingOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = s.queries.ListDocuments(ctx, "p-001", &ListDocumentsRequest{ApplyPeriod: true, Year: 2023})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	_, _, err = s.queries.ListDocuments(ctx, "p-001", &ListDocumentsRequest{SortBy: "body"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

// TestStatisticsService 测试统计
func TestStatisticsService(t *testing.T) {
	s := setupServices(t, workflow.Policy{})
	createDraft(t, s, "p-001", "s1", "s2")
	createDraft(t, s, "p-001")

	byStatus, err := s.stats.GetDocumentStatisticsByStatus()
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, int64(2), byStatus[0].Count)
	assert.Equal(t, workflow.StatusDraft.Name(), byStatus[0].StatusName)

	byPeriod, err := s.stats.GetDocumentStatisticsByPeriod(2024)
	require.NoError(t, err)
	require.Len(t, byPeriod, 1)
	assert.Equal(t, 3, byPeriod[0].Month)

	sig, err := s.stats.GetSignatureStatistics()
	require.NoError(t, err)
	assert.Equal(t, int64(2), sig.RequiredSignatures)
	assert.Equal(t, int64(0), sig.AppliedSignatures)
	assert.Equal(t, 0.0, sig.CompletionRate)
}
