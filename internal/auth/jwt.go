package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ActorHeader 未启用认证时携带员工 ID 的请求头
const ActorHeader = "X-Actor-ID"

var (
	ErrMissingToken = errors.New("missing authorization header")
	ErrMissingActor = errors.New("actor claim is missing")
)

// TokenValidator HS256 Token 验证器
// 只负责校验,不负责签发
type TokenValidator struct {
	secret     []byte
	issuer     string
	actorClaim string
	now        func() time.Time
}

// NewTokenValidator 创建 Token 验证器
func NewTokenValidator(secret, issuer, actorClaim string) *TokenValidator {
	if actorClaim == "" {
		actorClaim = "sub"
	}
	return &TokenValidator{
		secret:     []byte(secret),
		issuer:     issuer,
		actorClaim: actorClaim,
		now:        time.Now,
	}
}

// ValidateToken 验证 Token 并返回员工 ID
func (v *TokenValidator) ValidateToken(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to validate token: %w", err)
	}

	actor, _ := claims[v.actorClaim].(string)
	if actor == "" {
		return "", ErrMissingActor
	}
	return actor, nil
}

// bearerToken 从 Authorization 头提取 token
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		// WebSocket 握手无法设置请求头
		return c.Query("token")
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return header
}

// ResolveActor 从请求中解析员工 ID
// validator 为 nil 时信任 X-Actor-ID 请求头
func ResolveActor(c *gin.Context, validator *TokenValidator) (string, error) {
	if validator == nil {
		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if actor == "" {
			actor = c.Query("actor")
		}
		if actor == "" {
			return "", ErrMissingActor
		}
		return actor, nil
	}

	token := bearerToken(c)
	if token == "" {
		return "", ErrMissingToken
	}
	return validator.ValidateToken(token)
}

// ActorMiddleware 认证中间件,将员工 ID 存入上下文
func ActorMiddleware(validator *TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := ResolveActor(c, validator)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "unauthorized",
				"detail":  err.Error(),
			})
			c.Abort()
			return
		}

		c.Set("user_id", actor)
		c.Request = c.Request.WithContext(WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
