package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mautops/persuratan-gin/internal/metrics"
	"github.com/mautops/persuratan-gin/internal/render"
	"github.com/mautops/persuratan-gin/internal/storage"
	"github.com/mautops/persuratan-gin/internal/utils"
	"github.com/mautops/persuratan-gin/internal/workflow"
	"github.com/sirupsen/logrus"
)

// SealPipeline 公文封存流程
// 渲染正文并按签署顺序叠加签章,生成不可变的最终文档
type SealPipeline struct {
	renderer render.DocumentRenderer
	store    storage.ArtifactStore
	timeout  time.Duration
	now      func() time.Time
	logger   *logrus.Logger
}

// NewSealPipeline 创建封存流程
func NewSealPipeline(renderer render.DocumentRenderer, store storage.ArtifactStore, timeout time.Duration, logger *logrus.Logger) *SealPipeline {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SealPipeline{
		renderer: renderer,
		store:    store,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger,
	}
}

// Render 渲染正文并合并全部已签签章
// 每一步都受 ctx 约束,渲染器忽略 ctx 时也会按时返回
func (p *SealPipeline) Render(ctx context.Context, doc *workflow.Document) ([]byte, error) {
	body, err := render.Run(ctx, "render body", func() ([]byte, error) {
		return p.renderer.RenderBody(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	for _, signer := range doc.SignedInOrder() {
		mark, pos := signer.Signature()
		current := body
		body, err = render.Run(ctx, "merge signature "+signer.SignerID, func() ([]byte, error) {
			return p.renderer.MergeSignature(ctx, current, mark, pos)
		})
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

// Seal 在当前事务内封存公文
// 事务回滚时删除已写入的文件,公文与文件要么同时提交要么都不存在
func (p *SealPipeline) Seal(ctx context.Context, mut *Mutation) (*workflow.Artifact, error) {
	doc := mut.Doc
	if doc.IsSealed() {
		return nil, fmt.Errorf("%w: document %s already sealed", workflow.ErrAlreadyFinalized, doc.Hash)
	}
	if doc.AggregateStatus() != workflow.SignerStatusSigned {
		return nil, fmt.Errorf("%w: document %s", workflow.ErrIncompleteSignatureSet, doc.Hash)
	}

	start := time.Now()
	artifact, err := p.seal(ctx, mut)
	metrics.RecordSeal(time.Since(start), err)
	if err != nil {
		p.logger.WithError(err).WithField("document", doc.Hash).Warn("seal failed")
		return nil, err
	}

	doc.Artifact = artifact
	mut.Touch()
	mut.Audit("seal", map[string]interface{}{"ref": artifact.Ref, "digest": artifact.Digest, "size": artifact.Size})
	mut.Emit(EventDocumentSealed, map[string]interface{}{"digest": artifact.Digest})
	return artifact, nil
}

func (p *SealPipeline) seal(ctx context.Context, mut *Mutation) (*workflow.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	doc := mut.Doc
	data, err := p.Render(ctx, doc)
	if err != nil {
		return nil, err
	}

	ref, err := p.store.Put(ctx, artifactKey(doc), data)
	if err != nil {
		// 封存超时或取消按渲染失败处理,调用方可以重试
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, workflow.NewRenderError("store artifact", err)
		}
		return nil, fmt.Errorf("failed to store artifact: %w", err)
	}
	mut.OnRollback(func() {
		// 使用独立上下文,请求可能已经取消
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.store.Delete(cleanupCtx, ref); err != nil {
			p.logger.WithError(err).WithField("ref", ref).Error("failed to delete orphaned artifact")
		}
	})

	return &workflow.Artifact{
		Ref:      ref,
		Digest:   utils.Digest(data),
		Size:     int64(len(data)),
		SealedAt: p.now().UTC(),
	}, nil
}

// Load 读取已封存的文件并校验摘要
func (p *SealPipeline) Load(ctx context.Context, doc *workflow.Document) ([]byte, error) {
	if !doc.IsSealed() {
		return nil, fmt.Errorf("%w: document %s is not sealed", workflow.ErrNotFound, doc.Hash)
	}
	data, err := p.store.Get(ctx, doc.Artifact.Ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	if !utils.VerifyDigest(data, doc.Artifact.Digest) {
		return nil, fmt.Errorf("artifact digest mismatch for document %s", doc.Hash)
	}
	return data, nil
}

// ComposePacket 将多份公文按顺序合并为一个文件
// 已封存的公文使用封存文件,其余使用当前渲染结果
func (p *SealPipeline) ComposePacket(ctx context.Context, docs []*workflow.Document) ([]byte, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: packet has no documents", workflow.ErrNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var pages [][]byte
	for _, doc := range docs {
		var (
			source []byte
			err    error
		)
		if doc.IsSealed() {
			source, err = p.Load(ctx, doc)
		} else {
			source, err = p.Render(ctx, doc)
		}
		if err != nil {
			return nil, err
		}

		imported, err := render.Run(ctx, "import pages "+doc.Hash, func() ([][]byte, error) {
			return p.renderer.ImportPages(ctx, source)
		})
		if err != nil {
			return nil, err
		}
		pages = append(pages, imported...)
	}

	return render.Run(ctx, "compose packet", func() ([]byte, error) {
		return p.renderer.Compose(ctx, pages)
	})
}

// artifactKey 封存文件的存储路径
func artifactKey(doc *workflow.Document) string {
	return fmt.Sprintf("surat/%04d/%02d/%s.pdf", doc.PeriodYear, doc.PeriodMonth, doc.Hash)
}
