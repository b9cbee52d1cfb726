package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig 写入使用 sqlite 与本地存储的配置文件
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
database:
  driver: sqlite
  path: %s
storage:
  driver: local
  local_path: %s
log:
  level: warn
  format: text
  output: stdout
`, filepath.Join(dir, "persuratan.db"), filepath.Join(dir, "artifacts"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := GetRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// TestCommandTree 测试命令注册
func TestCommandTree(t *testing.T) {
	root := GetRootCmd()
	assert.Equal(t, "persuratan-gin", root.Use)

	for _, path := range [][]string{{"server"}, {"migrate"}, {"seal", "export"}, {"seal", "verify"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	server, _, _ := root.Find([]string{"server"})
	assert.NotNil(t, server.Flags().Lookup("port"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

// TestMigrateCommand 测试迁移命令
func TestMigrateCommand(t *testing.T) {
	path := writeConfig(t)
	_, err := run(t, "migrate", "--config", path)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(filepath.Dir(path), "persuratan.db"))

	_, err = run(t, "migrate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestSealCommands 测试封存文件命令对未知公文报错
func TestSealCommands(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, "seal", "verify", "--config", path, "unknown-hash")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1")
	assert.Contains(t, out, "unknown-hash\tFAIL")

	_, err = run(t, "seal", "export", "--config", path, "unknown-hash")
	assert.Error(t, err)

	_, err = run(t, "seal", "verify", "--config", path)
	assert.Error(t, err)
}
