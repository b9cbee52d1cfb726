package render

import (
	"context"
	"fmt"

	"github.com/mautops/persuratan-gin/internal/workflow"
)

// DocumentRenderer 文档渲染能力
// 正文渲染、签章合并与页面导入由外部引擎实现,核心只依赖此接口
type DocumentRenderer interface {
	// RenderBody 将文档内容渲染为分页的固定版式文件,相同内容输出相同
	RenderBody(ctx context.Context, doc *workflow.Document) ([]byte, error)
	// MergeSignature 在指定位置叠加签章,不改变页数与页序
	MergeSignature(ctx context.Context, artifact []byte, sig workflow.SignatureMark, pos workflow.Position) ([]byte, error)
	// ImportPages 将文件拆分为单页,用于合并多份文档
	ImportPages(ctx context.Context, source []byte) ([][]byte, error)
	// Compose 将多份文件按顺序合并为一份
	Compose(ctx context.Context, parts [][]byte) ([]byte, error)
}

// result 渲染结果
type result[T any] struct {
	value T
	err   error
}

// Run 在 goroutine 中执行渲染步骤,ctx 结束时立即返回
// 底层引擎不支持取消,超时后产生的结果被丢弃;错误统一包装为 RenderError
func Run[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, workflow.NewRenderError(op, err)
	}

	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result[T]{err: fmt.Errorf("renderer panic: %v", p)}
			}
		}()
		v, err := fn()
		done <- result[T]{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, workflow.NewRenderError(op, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return zero, workflow.NewRenderError(op, r.err)
		}
		return r.value, nil
	}
}
