package workflow_test

import (
	"testing"

	"github.com/mautops/persuratan-gin/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraft() *workflow.Document {
	return &workflow.Document{
		ID:             "doc-001",
		Hash:           "hash-001",
		Status:         workflow.StatusDraft,
		CreatedBy:      "p-001",
		OwnerPegawaiID: "p-001",
	}
}

// TestAddRecipient 测试添加收件人
func TestAddRecipient(t *testing.T) {
	doc := newDraft()
	require.NoError(t, doc.AddRecipient(workflow.Recipient{RecipientID: "r1", Name: "Budi"}))
	require.NoError(t, doc.AddRecipient(workflow.Recipient{RecipientID: "r2", Name: "Sari"}))

	err := doc.AddRecipient(workflow.Recipient{RecipientID: "r1"})
	assert.ErrorIs(t, err, workflow.ErrDuplicateRecipient)
	assert.Len(t, doc.Recipients, 2)
	assert.Equal(t, 0, doc.Recipients[0].Position)
	assert.Equal(t, 1, doc.Recipients[1].Position)
}

// TestForwardRecipient 测试转发
func TestForwardRecipient(t *testing.T) {
	doc := newDraft()
	require.NoError(t, doc.AddRecipient(workflow.Recipient{RecipientID: "r1"}))
	_, err := doc.MarkRead("r1")
	require.NoError(t, err)

	require.NoError(t, doc.Forward("r1", workflow.Recipient{RecipientID: "r3", Sent: true, Read: true}))
	fwd := doc.Recipient("r3")
	require.NotNil(t, fwd)
	assert.True(t, fwd.Forwarded)
	assert.Equal(t, "r1", fwd.ForwardedFrom)
	// 转发副本独立追踪
	assert.False(t, fwd.Sent)
	assert.False(t, fwd.Read)
	assert.Equal(t, 1, doc.ForwardCount())

	assert.ErrorIs(t, doc.Forward("missing", workflow.Recipient{RecipientID: "r4"}), workflow.ErrNotFound)
	assert.ErrorIs(t, doc.Forward("r1", workflow.Recipient{RecipientID: "r3"}), workflow.ErrDuplicateRecipient)
}

// TestMarkFlagsIdempotent 测试标记操作幂等
func TestMarkFlagsIdempotent(t *testing.T) {
	doc := newDraft()
	require.NoError(t, doc.AddRecipient(workflow.Recipient{RecipientID: "r1"}))

	marks := []func(string) (bool, error){doc.MarkSent, doc.MarkRead, doc.MarkResponded}
	for _, mark := range marks {
		changed, err := mark("r1")
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = mark("r1")
		require.NoError(t, err)
		assert.False(t, changed)
	}

	r := doc.Recipient("r1")
	assert.True(t, r.Sent)
	assert.True(t, r.Read)
	assert.True(t, r.Responded)

	_, err := doc.MarkSent("missing")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

// TestListUnacknowledged 测试未读收件人按插入顺序返回
func TestListUnacknowledged(t *testing.T) {
	doc := newDraft()
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		require.NoError(t, doc.AddRecipient(workflow.Recipient{RecipientID: id}))
	}
	_, err := doc.MarkRead("r2")
	require.NoError(t, err)
	// 仅回复不算已读
	_, err = doc.MarkResponded("r4")
	require.NoError(t, err)

	var ids []string
	for _, r := range doc.ListUnacknowledged() {
		ids = append(ids, r.RecipientID)
	}
	assert.Equal(t, []string{"r1", "r3", "r4"}, ids)
}
