package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`       // 日志级别
	OutputFile string `yaml:"output_file"` // 日志文件路径（可选）
	MaxSize    int    `yaml:"max_size"`    // 单文件最大大小（MB）
	MaxBackups int    `yaml:"max_backups"` // 保留的旧文件数量
	MaxAge     int    `yaml:"max_age"`     // 保留天数
	Compress   bool   `yaml:"compress"`    // 是否压缩旧文件
}

// OracleConfig 预言机配置
type OracleConfig struct {
	FeedURL       string `yaml:"feed_url"`        // websocket 喂价地址（可选）
	FeedSymbol    string `yaml:"feed_symbol"`     // 订阅交易对，例如 ETHUSD
	RESTURL       string `yaml:"rest_url"`        // REST 快照地址（可选，用于启动种子价）
	MaxAgeSeconds int    `yaml:"max_age_seconds"` // 结算价最大时效（秒）
}

// Config 服务配置
type Config struct {
	Listen      string       `yaml:"listen"`       // HTTP 监听地址
	IndexerDB   string       `yaml:"indexer_db"`   // 审计索引 sqlite 文件路径
	SnapshotDir string       `yaml:"snapshot_dir"` // 引擎快照 badger 目录
	QuoteToken  string       `yaml:"quote_token"`  // 权利金结算代币地址（hex）
	Oracle      OracleConfig `yaml:"oracle"`       // 预言机配置
	Log         LogConfig    `yaml:"log"`          // 日志配置
}

// ApplyDefaults 填充默认值
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.IndexerDB == "" {
		c.IndexerDB = "data/audit.db"
	}
	if c.SnapshotDir == "" {
		c.SnapshotDir = "data/snapshots"
	}
	if c.Oracle.MaxAgeSeconds <= 0 {
		c.Oracle.MaxAgeSeconds = 300
	}
	if c.Oracle.FeedSymbol == "" {
		c.Oracle.FeedSymbol = "ETHUSD"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.QuoteToken != "" && !common.IsHexAddress(c.QuoteToken) {
		return fmt.Errorf("quote_token 不是合法地址: %s", c.QuoteToken)
	}
	if c.Oracle.MaxAgeSeconds <= 0 {
		return fmt.Errorf("oracle.max_age_seconds 必须为正: %d", c.Oracle.MaxAgeSeconds)
	}
	return nil
}

// OracleMaxAge 结算价最大时效
func (c *Config) OracleMaxAge() time.Duration {
	return time.Duration(c.Oracle.MaxAgeSeconds) * time.Second
}

// QuoteTokenAddress 解析权利金结算代币地址
func (c *Config) QuoteTokenAddress() common.Address {
	return common.HexToAddress(c.QuoteToken)
}

// Load 从 yaml 文件加载配置，再用环境变量覆盖
//
// path 为空或文件不存在时从零值+默认值开始（纯环境变量运行）。
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}
	applyEnv(cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 环境变量覆盖（DERIVA_ 前缀）
func applyEnv(cfg *Config) {
	if v := os.Getenv("DERIVA_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("DERIVA_INDEXER_DB"); v != "" {
		cfg.IndexerDB = v
	}
	if v := os.Getenv("DERIVA_SNAPSHOT_DIR"); v != "" {
		cfg.SnapshotDir = v
	}
	if v := os.Getenv("DERIVA_QUOTE_TOKEN"); v != "" {
		cfg.QuoteToken = v
	}
	if v := os.Getenv("DERIVA_ORACLE_FEED_URL"); v != "" {
		cfg.Oracle.FeedURL = v
	}
	if v := os.Getenv("DERIVA_ORACLE_FEED_SYMBOL"); v != "" {
		cfg.Oracle.FeedSymbol = v
	}
	if v := os.Getenv("DERIVA_ORACLE_REST_URL"); v != "" {
		cfg.Oracle.RESTURL = v
	}
	if v := os.Getenv("DERIVA_ORACLE_MAX_AGE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Oracle.MaxAgeSeconds = n
		}
	}
	if v := os.Getenv("DERIVA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DERIVA_LOG_FILE"); v != "" {
		cfg.Log.OutputFile = v
	}
}
