package repository_test

import (
	"testing"
	"time"

	"github.com/mautops/persuratan-gin/internal/model"
	"github.com/mautops/persuratan-gin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStateHistoryRepository 测试状态历史仓储
func TestStateHistoryRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewStateHistoryRepository(db)
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(&model.StateHistoryModel{
		ID: "h2", DocumentID: "doc-001", FromStatus: 3, ToStatus: 4, Operator: "p-001", CreatedAt: base.Add(time.Minute),
	}))
	require.NoError(t, repo.Save(&model.StateHistoryModel{
		ID: "h1", DocumentID: "doc-001", FromStatus: 1, ToStatus: 3, Operator: "p-001", CreatedAt: base,
	}))
	assert.Error(t, repo.Save(&model.StateHistoryModel{ID: "h3", DocumentID: "doc-001", Operator: "p-001"}))

	histories, err := repo.FindByDocumentID("doc-001")
	require.NoError(t, err)
	require.Len(t, histories, 2)
	assert.Equal(t, "h1", histories[0].ID)
	assert.Equal(t, 4, histories[1].ToStatus)
}

// TestAuditLogRepository 测试审计日志仓储
func TestAuditLogRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewAuditLogRepository(db)

	require.NoError(t, repo.Save(&model.AuditLogModel{
		ID: "a1", UserID: "p-001", Action: "sign", ResourceType: "document", ResourceID: "doc-001",
		Details: []byte(`{"outcome":"success"}`), CreatedAt: time.Now(),
	}))

	logs, err := repo.FindByResource("document", "doc-001")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.JSONEq(t, `{"outcome":"success"}`, string(logs[0].Details))

	logs, err = repo.FindByUserID("p-001")
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

// TestEventRepository 测试事件仓储
func TestEventRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewEventRepository(db)
	now := time.Now()

	event := &model.EventModel{
		ID: "e1", DocumentID: "doc-001", Type: "document_signed",
		Data: []byte(`{"hash":"h-1"}`), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.Save(event))
	assert.Equal(t, model.EventStatusPending, event.Status)

	pending, err := repo.FindPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repo.UpdateStatus("e1", model.EventStatusSuccess, 1))
	pending, err = repo.FindPending(10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	events, err := repo.FindByDocumentID("doc-001")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventStatusSuccess, events[0].Status)
	assert.Equal(t, 1, events[0].RetryCount)
}
