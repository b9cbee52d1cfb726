package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Version 服务版本,构建时通过 -ldflags 注入
var Version = "dev"

// supportedVersions 当前支持的 API 版本
var supportedVersions = map[string]bool{"v1": true}

// VersionMiddleware API 版本中间件
// 版本来自 URL 路径 /api/v1/...,API-Version 请求头优先
func VersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		version := "v1"

		parts := strings.Split(strings.TrimPrefix(c.Request.URL.Path, "/"), "/")
		if len(parts) > 1 && parts[0] == "api" && strings.HasPrefix(parts[1], "v") {
			version = parts[1]
		}
		if headerVersion := c.GetHeader("API-Version"); headerVersion != "" {
			version = headerVersion
		}

		if !supportedVersions[version] {
			Error(c, http.StatusBadRequest, "unsupported api version", version)
			c.Abort()
			return
		}

		c.Set("api_version", version)
		c.Header("X-API-Version", version)
		c.Next()
	}
}

// GetAPIVersion 从上下文获取 API 版本
func GetAPIVersion(c *gin.Context) string {
	if v := c.GetString("api_version"); v != "" {
		return v
	}
	return "v1"
}

// VersionHandler 返回服务版本信息
func VersionHandler(c *gin.Context) {
	Success(c, gin.H{
		"version":     Version,
		"api_version": GetAPIVersion(c),
	})
}
