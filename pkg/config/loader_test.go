package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// 測試 LoadConfig 解析 YAML 與 ${} 環境變數替換
func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("TEST_PG_PASSWORD", "secret")
	defer os.Unsetenv("TEST_PG_PASSWORD")

	yaml := `
port: ":8080"
pg:
  host: "localhost"
  port: 5432
  user: "chat"
  password: "${TEST_PG_PASSWORD}"
  database: "chat_db"
  retry_interval: 2
  retry_count: 5
redis:
  addr: "localhost:6379"
  redis_db: 0
relay:
  group_name: "db-persist-group"
  consumer_name: "db-worker-1"
  poll_interval: "1s"
  batch_count: 10
  max_stream_len: 50
  restore_count: 50
`
	err := os.WriteFile(filepath.Join(dir, "chat_service.yaml"), []byte(yaml), 0o644)
	assert.NoError(t, err)

	cfg := LoadConfig[ChatRelay]("chat_service", dir)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "localhost", cfg.PostgreSQL.Host)
	assert.Equal(t, 5432, cfg.PostgreSQL.Port)
	assert.Equal(t, "secret", cfg.PostgreSQL.Password)
	assert.Equal(t, "db-persist-group", cfg.Relay.GroupName)
	assert.Equal(t, time.Second, cfg.Relay.PollInterval)
	assert.Equal(t, int64(50), cfg.Relay.MaxStreamLen)
	assert.Equal(t, 50, cfg.Relay.RestoreCount)
}

// 測試 GetPath 往上層目錄找檔案
func TestGetPath(t *testing.T) {
	_, err := GetPath("no_such_file.yaml", 2)
	assert.Error(t, err)

	// 目前目錄下的檔案第一層就該找到
	path, err := GetPath("loader.go", 1)
	assert.NoError(t, err)
	assert.Equal(t, "./loader.go", path)
}
