package workflow

import (
	"context"
	"errors"
	"fmt"
)

// 工作流错误分类
// 调用方通过 errors.Is 判断,批量操作中这些错误会转换为 Outcome
var (
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrDuplicateRecipient     = errors.New("duplicate recipient")
	ErrAlreadyFinalized       = errors.New("document already finalized")
	ErrNotEligible            = errors.New("actor is not eligible to sign")
	ErrAlreadySigned          = errors.New("signer already signed")
	ErrNotFound               = errors.New("not found")
	ErrRenderFailure          = errors.New("render failure")
	ErrIncompleteSignatureSet = errors.New("incomplete signature set")
	ErrEmptySignerSet         = errors.New("signer set is empty")
)

// RenderError 渲染器返回的错误
// errors.Is(err, ErrRenderFailure) 为真,同时保留原始错误以便重试判断
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failure during %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Is 使 RenderError 匹配 ErrRenderFailure
func (e *RenderError) Is(target error) bool {
	return target == ErrRenderFailure
}

// Retryable 判断失败是否可以直接重试
// 超时与取消总是可重试,其余由渲染器错误自身决定
func (e *RenderError) Retryable() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) || errors.Is(e.Err, context.Canceled) {
		return true
	}
	var r interface{ Retryable() bool }
	if errors.As(e.Err, &r) {
		return r.Retryable()
	}
	return true
}

// NewRenderError 包装渲染错误,已经是 RenderError 的直接返回
func NewRenderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RenderError
	if errors.As(err, &re) {
		return err
	}
	return &RenderError{Op: op, Err: err}
}
