package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("空路径加载失败: %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Fatalf("默认监听地址 got=%s want=:8080", cfg.Listen)
	}
	if cfg.Oracle.MaxAgeSeconds != 300 {
		t.Fatalf("默认价格时效 got=%d want=300", cfg.Oracle.MaxAgeSeconds)
	}
	if cfg.OracleMaxAge() != 5*time.Minute {
		t.Fatalf("时效换算 got=%s want=5m", cfg.OracleMaxAge())
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("默认日志级别 got=%s want=info", cfg.Log.Level)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
listen: ":9090"
quote_token: "0x00000000000000000000000000000000000d0a01"
oracle:
  feed_symbol: BTCUSD
  max_age_seconds: 60
log:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("写配置文件失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Fatalf("监听地址 got=%s want=:9090", cfg.Listen)
	}
	if cfg.Oracle.FeedSymbol != "BTCUSD" {
		t.Fatalf("交易对 got=%s want=BTCUSD", cfg.Oracle.FeedSymbol)
	}
	if cfg.OracleMaxAge() != time.Minute {
		t.Fatalf("时效 got=%s want=1m", cfg.OracleMaxAge())
	}
	if addr := cfg.QuoteTokenAddress(); addr.Big().Sign() == 0 {
		t.Fatal("代币地址不应解析为零值")
	}
	// 未设置的字段仍取默认值
	if cfg.IndexerDB != "data/audit.db" {
		t.Fatalf("默认审计库路径 got=%s", cfg.IndexerDB)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: \":9090\"\n"), 0o644); err != nil {
		t.Fatalf("写配置文件失败: %v", err)
	}
	t.Setenv("DERIVA_LISTEN", ":7070")
	t.Setenv("DERIVA_ORACLE_MAX_AGE_SECONDS", "120")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Listen != ":7070" {
		t.Fatalf("环境变量未覆盖: got=%s want=:7070", cfg.Listen)
	}
	if cfg.Oracle.MaxAgeSeconds != 120 {
		t.Fatalf("时效覆盖 got=%d want=120", cfg.Oracle.MaxAgeSeconds)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{QuoteToken: "not-an-address"}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("非法代币地址应校验失败")
	}

	cfg = &Config{}
	cfg.ApplyDefaults()
	cfg.Oracle.MaxAgeSeconds = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("负时效应校验失败")
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("缺失文件应回退默认值: %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Fatalf("回退默认值 got=%s", cfg.Listen)
	}
}
