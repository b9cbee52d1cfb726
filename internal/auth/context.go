package auth

import (
	"context"
)

type contextKey string

const (
	actorKey     contextKey = "actor_id"
	requestIDKey contextKey = "request_id"
	clientIPKey  contextKey = "ip"
	userAgentKey contextKey = "user_agent"
)

// RequestMeta 请求元信息,写入审计日志
type RequestMeta struct {
	RequestID string
	IP        string
	UserAgent string
}

// WithActor 将当前员工 ID 写入上下文
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorFromContext 获取当前员工 ID
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestMeta 将请求元信息写入上下文
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, meta.RequestID)
	ctx = context.WithValue(ctx, clientIPKey, meta.IP)
	return context.WithValue(ctx, userAgentKey, meta.UserAgent)
}

// RequestMetaFromContext 获取请求元信息
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	var meta RequestMeta
	meta.RequestID, _ = ctx.Value(requestIDKey).(string)
	meta.IP, _ = ctx.Value(clientIPKey).(string)
	meta.UserAgent, _ = ctx.Value(userAgentKey).(string)
	return meta
}
