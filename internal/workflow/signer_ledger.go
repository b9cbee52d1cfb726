package workflow

import (
	"fmt"
	"sort"
	"time"
)

// Policy 签署资格策略
type Policy struct {
	// OwnerMaySignBeforeReady 允许文件所有人在草稿或已提交状态下提前签署
	OwnerMaySignBeforeReady bool
}

// RequireSigners 设置文件的签署人集合
// 重复的签署人只保留第一次出现的位置;已有人签署后不允许替换
func (d *Document) RequireSigners(signerIDs []string, sequential bool) error {
	if d.Status.IsTerminal() {
		return fmt.Errorf("%w: document status %d", ErrAlreadyFinalized, d.Status)
	}
	for _, s := range d.Signers {
		if s.Signed {
			return fmt.Errorf("%w: %s signed already, signer set is fixed", ErrAlreadySigned, s.SignerID)
		}
	}

	seen := make(map[string]struct{}, len(signerIDs))
	signers := make([]*Signer, 0, len(signerIDs))
	for _, id := range signerIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		signers = append(signers, &Signer{SignerID: id, Sequence: len(signers) + 1})
	}
	if len(signers) == 0 {
		return ErrEmptySignerSet
	}

	d.Signers = signers
	d.SequentialSigning = sequential
	return nil
}

// Signer 根据 ID 查找签署人
func (d *Document) Signer(signerID string) *Signer {
	for _, s := range d.Signers {
		if s.SignerID == signerID {
			return s
		}
	}
	return nil
}

// IsEligibleSigner 判断 actor 当前是否可以签署
func (d *Document) IsEligibleSigner(actorID string, p Policy) bool {
	s := d.Signer(actorID)
	if s == nil || s.Signed {
		return false
	}
	if !d.actionableFor(actorID, p) {
		return false
	}
	if d.SequentialSigning {
		for _, prior := range d.Signers {
			if prior.Sequence < s.Sequence && !prior.Signed {
				return false
			}
		}
	}
	return true
}

// actionableFor 状态门槛: 待签署状态对所有签署人开放,
// 草稿与已提交状态仅在策略允许时对创建者本人且为当前所有人开放
func (d *Document) actionableFor(actorID string, p Policy) bool {
	switch d.Status {
	case StatusReadyToSign:
		return true
	case StatusDraft, StatusSubmitted:
		return p.OwnerMaySignBeforeReady && d.OwnerPegawaiID == actorID && d.CreatedBy == actorID
	default:
		return false
	}
}

// ApplySignature 为 actor 应用签名,返回重新计算的签署汇总状态
func (d *Document) ApplySignature(actorID string, payload SignaturePayload, now time.Time, p Policy) (SignerStatus, error) {
	if s := d.Signer(actorID); s != nil && s.Signed {
		return d.AggregateStatus(), fmt.Errorf("%w: %s", ErrAlreadySigned, actorID)
	}
	if !d.IsEligibleSigner(actorID, p) {
		return d.AggregateStatus(), fmt.Errorf("%w: %s", ErrNotEligible, actorID)
	}

	s := d.Signer(actorID)
	signedAt := now.UTC()
	s.Signed = true
	s.SignedAt = &signedAt
	s.Payload = payload
	return d.AggregateStatus(), nil
}

// AggregateStatus 重新计算签署汇总状态
// 没有签署人时视为未签署
func (d *Document) AggregateStatus() SignerStatus {
	if len(d.Signers) == 0 {
		return SignerStatusUnsigned
	}
	for _, s := range d.Signers {
		if !s.Signed {
			return SignerStatusUnsigned
		}
	}
	return SignerStatusSigned
}

// SignedInOrder 按签署顺序返回已签署的签署人
func (d *Document) SignedInOrder() []*Signer {
	result := make([]*Signer, 0, len(d.Signers))
	for _, s := range d.Signers {
		if s.Signed {
			result = append(result, s)
		}
	}
	if d.SequentialSigning {
		return result
	}
	// 非顺序签署时按签署时间排列
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SignedAt.Before(*result[j].SignedAt)
	})
	return result
}
