package integration

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mautops/persuratan-gin/internal/metrics"
	"github.com/mautops/persuratan-gin/internal/workflow"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrBatchTooLarge 批量签署数量超过上限
var ErrBatchTooLarge = errors.New("sign batch exceeds the maximum size")

// SignResult 单个公文的签署结果
type SignResult struct {
	Hash         string           `json:"hash"`
	Outcome      workflow.Outcome `json:"outcome"`
	SignerStatus int              `json:"signer_status"`
	Status       int              `json:"status,omitempty"`
	Sealed       bool             `json:"sealed"`
	Error        string           `json:"error,omitempty"`
}

// BatchResult 批量签署结果,顺序与去重后的输入一致
type BatchResult struct {
	Actor   string       `json:"actor"`
	Results []SignResult `json:"results"`
}

// Outcomes 按 hash 返回结果
func (r *BatchResult) Outcomes() map[string]workflow.Outcome {
	out := make(map[string]workflow.Outcome, len(r.Results))
	for _, item := range r.Results {
		out[item.Hash] = item.Outcome
	}
	return out
}

// SuccessCount 成功数量
func (r *BatchResult) SuccessCount() int {
	n := 0
	for _, item := range r.Results {
		if item.Outcome.Succeeded() {
			n++
		}
	}
	return n
}

// SigningCoordinatorOptions 签署协调器配置
type SigningCoordinatorOptions struct {
	Policy       workflow.Policy
	Workers      int
	MaxBatchSize int
	Logger       *logrus.Logger
}

// SigningCoordinator 批量签署协调器
// 各公文独立加锁、独立事务,单个失败不影响其他公文
type SigningCoordinator struct {
	manager  *DocumentManager
	sealer   *SealPipeline
	policy   workflow.Policy
	workers  int
	maxBatch int
	now      func() time.Time
	logger   *logrus.Logger
}

// NewSigningCoordinator 创建签署协调器
func NewSigningCoordinator(manager *DocumentManager, sealer *SealPipeline, opts SigningCoordinatorOptions) *SigningCoordinator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &SigningCoordinator{
		manager:  manager,
		sealer:   sealer,
		policy:   opts.Policy,
		workers:  opts.Workers,
		maxBatch: opts.MaxBatchSize,
		now:      time.Now,
		logger:   opts.Logger,
	}
}

// Policy 返回当前签署规则
func (c *SigningCoordinator) Policy() workflow.Policy {
	return c.policy
}

// SignBatch 批量签署
// 取消只影响尚未开始的公文,已提交的签署保持有效
func (c *SigningCoordinator) SignBatch(ctx context.Context, actorID string, hashes []string, payload workflow.SignaturePayload) (*BatchResult, error) {
	hashes = dedupe(hashes)
	if c.maxBatch > 0 && len(hashes) > c.maxBatch {
		return nil, ErrBatchTooLarge
	}
	metrics.RecordSignBatch(len(hashes))

	result := &BatchResult{Actor: actorID, Results: make([]SignResult, len(hashes))}

	// 单个公文的失败记录在结果中,不通过 errgroup 返回
	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	for i, hash := range hashes {
		i, hash := i, hash
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				result.Results[i] = failed(hash, err)
				return nil
			}
			result.Results[i] = c.signOne(ctx, actorID, hash, payload)
			return nil
		})
	}
	_ = g.Wait()

	for _, item := range result.Results {
		metrics.RecordSignature(string(item.Outcome))
	}
	c.logger.WithFields(logrus.Fields{
		"actor":   actorID,
		"total":   len(hashes),
		"success": result.SuccessCount(),
	}).Info("sign batch finished")
	return result, nil
}

// signOne 签署单个公文,签署完成时在同一事务内封存
func (c *SigningCoordinator) signOne(ctx context.Context, actorID, hash string, payload workflow.SignaturePayload) SignResult {
	var sealed bool
	doc, err := c.manager.WithDocument(ctx, hash, actorID, func(mut *Mutation) error {
		signerStatus, err := mut.Doc.ApplySignature(actorID, payload, c.now(), c.policy)
		if err != nil {
			return err
		}
		mut.Touch()
		mut.Audit("sign", map[string]interface{}{"signer_status": int(signerStatus), "reference": payload.Reference})
		mut.Emit(EventDocumentSigned, map[string]interface{}{"signer": actorID, "signer_status": int(signerStatus)})

		// 所有人提前签署时,封存推迟到路由进入待签署
		if signerStatus != workflow.SignerStatusSigned || mut.Doc.Status != workflow.StatusReadyToSign {
			return nil
		}
		if _, err := mut.AdvanceOnFullSignature(); err != nil {
			return err
		}
		if _, err := c.sealer.Seal(mut.Context(), mut); err != nil {
			return err
		}
		sealed = true
		return nil
	})
	if err != nil {
		res := failed(hash, err)
		c.logger.WithFields(logrus.Fields{
			"document": hash,
			"actor":    actorID,
			"outcome":  res.Outcome,
		}).WithError(err).Debug("signature not applied")
		return res
	}

	return SignResult{
		Hash:         hash,
		Outcome:      workflow.OutcomeSuccess,
		SignerStatus: int(doc.AggregateStatus()),
		Status:       doc.Status.Code(),
		Sealed:       sealed,
	}
}

// failed 将错误转换为结果
func failed(hash string, err error) SignResult {
	res := SignResult{Hash: hash, Outcome: workflow.OutcomeOf(err)}
	// 预期内的拒绝不附带错误详情
	switch res.Outcome {
	case workflow.OutcomeRenderFailure, workflow.OutcomeError, workflow.OutcomeInvalidTransition:
		res.Error = err.Error()
	}
	return res
}

// dedupe 去重并保持首次出现的顺序
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
