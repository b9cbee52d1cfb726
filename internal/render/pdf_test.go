package render_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mautops/persuratan-gin/internal/render"
	"github.com/mautops/persuratan-gin/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *workflow.Document {
	return &workflow.Document{
		ID:             "doc-001",
		Hash:           "hash-001",
		RegisterNumber: "B-12/UN/2024",
		Hal:            "Undangan Rapat Koordinasi",
		Sifat:          1,
		CreatedAt:      time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		Body:           "Dengan hormat, kami mengundang Bapak/Ibu untuk hadir pada rapat koordinasi.",
		Recipients: []*workflow.Recipient{
			{RecipientID: "r1", Name: "Budi Santoso", Jabatan: "Kepala Bagian Umum"},
		},
	}
}

// TestRenderBodyDeterministic 测试相同内容渲染结果一致
func TestRenderBodyDeterministic(t *testing.T) {
	r := render.NewPDFRenderer(render.PDFOptions{Organization: "Sekretariat Daerah"})
	ctx := context.Background()

	first, err := r.RenderBody(ctx, sampleDocument())
	require.NoError(t, err)
	second, err := r.RenderBody(ctx, sampleDocument())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(first, []byte("%PDF-")))
	assert.Equal(t, first, second)
}

// TestMergeSignaturePreservesPages 测试叠加签章不改变页数
func TestMergeSignaturePreservesPages(t *testing.T) {
	r := render.NewPDFRenderer(render.PDFOptions{})
	ctx := context.Background()

	body, err := r.RenderBody(ctx, sampleDocument())
	require.NoError(t, err)
	before, err := render.PageCount(body)
	require.NoError(t, err)

	mark := workflow.SignatureMark{SignerID: "s1", Text: "Kepala Dinas", SignedAt: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)}
	signed, err := r.MergeSignature(ctx, body, mark, workflow.Position{Page: 1, X: 380, Y: 120})
	require.NoError(t, err)

	after, err := render.PageCount(signed)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NotEqual(t, body, signed)
}

// TestImportAndCompose 测试页面导入与合并
func TestImportAndCompose(t *testing.T) {
	r := render.NewPDFRenderer(render.PDFOptions{})
	ctx := context.Background()

	a, err := r.RenderBody(ctx, sampleDocument())
	require.NoError(t, err)
	b, err := r.RenderBody(ctx, sampleDocument())
	require.NoError(t, err)

	pages, err := r.ImportPages(ctx, a)
	require.NoError(t, err)
	assert.Len(t, pages, 1)

	packet, err := r.Compose(ctx, [][]byte{a, b})
	require.NoError(t, err)
	count, err := render.PageCount(packet)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = r.Compose(ctx, nil)
	assert.ErrorIs(t, err, workflow.ErrRenderFailure)
}

// TestRenderCanceled 测试 ctx 取消时返回渲染失败
func TestRenderCanceled(t *testing.T) {
	r := render.NewPDFRenderer(render.PDFOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RenderBody(ctx, sampleDocument())
	assert.ErrorIs(t, err, workflow.ErrRenderFailure)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestMergeSignatureInvalidInput 测试无效输入
func TestMergeSignatureInvalidInput(t *testing.T) {
	r := render.NewPDFRenderer(render.PDFOptions{})
	_, err := r.MergeSignature(context.Background(), []byte("not a pdf"), workflow.SignatureMark{}, workflow.Position{})
	assert.ErrorIs(t, err, workflow.ErrRenderFailure)
}
