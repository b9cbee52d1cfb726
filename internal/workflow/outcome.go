package workflow

import (
	"errors"
)

// Outcome 批量签署中单个文件的处理结果
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeNotEligible       Outcome = "not_eligible"
	OutcomeAlreadySigned     Outcome = "already_signed"
	OutcomeNotFound          Outcome = "not_found"
	OutcomeInvalidTransition Outcome = "invalid_transition"
	OutcomeRenderFailure     Outcome = "render_failure"
	OutcomeError             Outcome = "error"
)

// OutcomeOf 将错误映射为批量结果
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrAlreadySigned):
		return OutcomeAlreadySigned
	case errors.Is(err, ErrNotEligible):
		return OutcomeNotEligible
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadyFinalized), errors.Is(err, ErrIncompleteSignatureSet):
		return OutcomeInvalidTransition
	case errors.Is(err, ErrRenderFailure):
		return OutcomeRenderFailure
	default:
		return OutcomeError
	}
}

// Succeeded 判断结果是否成功
func (o Outcome) Succeeded() bool {
	return o == OutcomeSuccess
}
