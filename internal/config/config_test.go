package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mautops/persuratan-gin/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestLoadConfigFromFile 测试从配置文件加载配置
func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8081
database:
  driver: sqlite
  path: ":memory:"
storage:
  driver: s3
  s3:
    bucket: surat
    base_endpoint: http://127.0.0.1:9000
signing:
  owner_may_sign_before_ready: true
  batch_workers: 8
  seal_timeout: 5s
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "surat", cfg.Storage.S3.Bucket)
	assert.True(t, cfg.Signing.OwnerMaySignBeforeReady)
	assert.Equal(t, 8, cfg.Signing.BatchWorkers)
	assert.Equal(t, 5*time.Second, cfg.Signing.SealTimeout)
	// 未配置项使用默认值
	assert.Equal(t, 10*time.Second, cfg.Signing.LockTimeout)
	assert.Equal(t, "pegawai_id", cfg.Auth.ActorClaim)
}

// TestLoadConfigFromEnv 测试从环境变量加载配置
func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "9090")
	t.Setenv("APP_DATABASE_HOST", "db.example.com")
	t.Setenv("APP_SIGNING_BATCH_WORKERS", "2")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 2, cfg.Signing.BatchWorkers)
}

// TestDefaultConfig 测试默认配置
func TestDefaultConfig(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Signing.OwnerMaySignBeforeReady)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, 30*time.Second, cfg.Signing.SealTimeout)
	assert.Greater(t, cfg.Redis.LockTTL, cfg.Signing.SealTimeout+cfg.Signing.LockTimeout)
	assert.False(t, config.IsProduction(cfg))

	// 默认锁时长在启用 Redis 时同样合法
	cfg.Redis.Addr = "127.0.0.1:6379"
	assert.NoError(t, cfg.Validate())
	assert.False(t, config.IsProduction(nil))
}

// TestConfigValidate 测试配置校验
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"未知数据库驱动", func(c *config.Config) { c.Database.Driver = "mysql" }},
		{"未知存储驱动", func(c *config.Config) { c.Storage.Driver = "ftp" }},
		{"S3 缺少 bucket", func(c *config.Config) { c.Storage.Driver = "s3" }},
		{"并发数非法", func(c *config.Config) { c.Signing.BatchWorkers = 0 }},
		{"启用校验但缺少密钥", func(c *config.Config) { c.Auth.Enabled = true }},
		{"锁过期时间不足", func(c *config.Config) {
			c.Redis.Addr = "127.0.0.1:6379"
			c.Redis.LockTTL = c.Signing.SealTimeout
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestConfigWatcher 测试配置热更新
func TestConfigWatcher(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	watcher := config.NewConfigWatcher(cfg, path, nil)
	var mu sync.Mutex
	var updated *config.Config
	watcher.OnConfigChange(func(c *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		updated = c
	})
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return updated != nil && updated.Log.Level == "error"
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, "error", watcher.GetConfig().Log.Level)
	// 热更新后默认值仍然生效
	assert.Equal(t, 4, watcher.GetConfig().Signing.BatchWorkers)
}
