// Package config 负责加载与校验运行配置。配置为 YAML，未显式给出的
// 字段取默认值，显式给出但非法的字段直接报错退出。
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"vigil/internal/scheduler"
)

// Config 顶层运行配置。
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Feed     FeedConfig     `yaml:"feed"`
	Engine   EngineConfig   `yaml:"engine"`
	Rules    RulesConfig    `yaml:"rules"`
	Store    StoreConfig    `yaml:"store"`
	Backtest BacktestConfig `yaml:"backtest"`
	Report   ReportConfig   `yaml:"report"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type FeedConfig struct {
	Mode     string `yaml:"mode"`     // demo 或 binance
	Symbol   string `yaml:"symbol"`   // demo 默认 SPY，binance 默认 BTCUSDT
	Interval string `yaml:"interval"` // binance K 线周期
	History  int    `yaml:"history"`
	Seed     int64  `yaml:"seed"` // demo 随机种子，0 表示随机
}

type EngineConfig struct {
	QueueSize int `yaml:"queue_size"` // 每个订阅者的有界队列长度
}

// RulesConfig 声明式的规则集，启动时翻译成引擎算子。
type RulesConfig struct {
	Sequences []SequenceRuleConfig `yaml:"sequences"`
	Sliding   []SlidingRuleConfig  `yaml:"sliding"`
	Shocks    []ShockRuleConfig    `yaml:"shocks"`
}

// FieldCond 对事件 Data 中单个数值字段的比较条件。
type FieldCond struct {
	Field string  `yaml:"field"`
	Op    string  `yaml:"op"` // <、<=、>、>=
	Value float64 `yaml:"value"`
}

type SequenceRuleConfig struct {
	Name       string     `yaml:"name"`
	First      string     `yaml:"first"`
	Then       string     `yaml:"then"`
	WindowSec  int64      `yaml:"window_sec"`
	Emit       string     `yaml:"emit"`
	WhereFirst *FieldCond `yaml:"where_first"`
	WhereThen  *FieldCond `yaml:"where_then"`
}

type SlidingRuleConfig struct {
	Name      string     `yaml:"name"`
	Type      string     `yaml:"type"`
	WindowSec int64      `yaml:"window_sec"`
	Threshold int        `yaml:"threshold"`
	Emit      string     `yaml:"emit"`
	Where     *FieldCond `yaml:"where"`
}

type ShockRuleConfig struct {
	Name      string  `yaml:"name"`
	Series    string  `yaml:"series"`
	Threshold float64 `yaml:"threshold"`
	Emit      string  `yaml:"emit"`
}

type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type BacktestConfig struct {
	PineFiles   []string `yaml:"pine_files"`
	MinTrades   int      `yaml:"min_trades"`
	MaxDrawdown float64  `yaml:"max_drawdown"`
	Workers     int      `yaml:"workers"`
}

type ReportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 读取 path 指向的 YAML 配置，补默认值并校验。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回不依赖配置文件的可运行配置（demo 数据源）。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Feed.Mode == "" {
		c.Feed.Mode = "demo"
	}
	if c.Feed.Symbol == "" {
		if c.Feed.Mode == "binance" {
			c.Feed.Symbol = "BTCUSDT"
		} else {
			c.Feed.Symbol = "SPY"
		}
	}
	if c.Feed.Interval == "" {
		c.Feed.Interval = "1m"
	}
	if c.Feed.History <= 0 {
		c.Feed.History = 200
	}
	if c.Engine.QueueSize <= 0 {
		c.Engine.QueueSize = 256
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/vigil.db"
	}
	if c.Backtest.MinTrades <= 0 {
		c.Backtest.MinTrades = 3
	}
	if c.Backtest.MaxDrawdown >= 0 {
		c.Backtest.MaxDrawdown = -0.25
	}
	if c.Backtest.Workers <= 0 {
		c.Backtest.Workers = 4
	}
	if c.Report.Path == "" {
		c.Report.Path = "data/report.html"
	}
	if len(c.Rules.Sequences) == 0 && len(c.Rules.Sliding) == 0 && len(c.Rules.Shocks) == 0 {
		c.Rules = defaultRules()
	}
}

// defaultRules 是开箱即用的规则集：负面新闻后跟随突破、滚动新闻密度、
// CPI 超预期冲击。
func defaultRules() RulesConfig {
	neg := -0.5
	return RulesConfig{
		Sequences: []SequenceRuleConfig{{
			Name:       "NewsThenBreakout",
			First:      "NewsItem",
			Then:       "Breakout",
			WindowSec:  60,
			Emit:       "NewsDrivenBreakout",
			WhereFirst: &FieldCond{Field: "sentiment", Op: "<=", Value: neg},
		}},
		Sliding: []SlidingRuleConfig{{
			Name:      "NewsBurst",
			Type:      "NewsItem",
			WindowSec: 120,
			Threshold: 3,
			Emit:      "NewsBurst",
		}},
		Shocks: []ShockRuleConfig{{
			Name:      "CPIShock",
			Series:    "US:CPI",
			Threshold: 0.5,
			Emit:      "MacroShock",
		}},
	}
}

func validate(c *Config) error {
	switch strings.ToLower(c.Feed.Mode) {
	case "demo", "binance":
	default:
		return fmt.Errorf("feed.mode 只支持 demo 或 binance，收到 %q", c.Feed.Mode)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level 非法: %q", c.Log.Level)
	}
	if _, ok := scheduler.ParseIntervalDuration(c.Feed.Interval); !ok {
		return fmt.Errorf("feed.interval 非法: %q", c.Feed.Interval)
	}
	for _, r := range c.Rules.Sequences {
		if r.First == "" || r.Then == "" {
			return fmt.Errorf("sequence 规则 %q 缺少 first/then", r.Name)
		}
		if r.WindowSec <= 0 {
			return fmt.Errorf("sequence 规则 %q 的 window_sec 必须为正", r.Name)
		}
		if err := validateCond(r.WhereFirst); err != nil {
			return fmt.Errorf("sequence 规则 %q: %w", r.Name, err)
		}
		if err := validateCond(r.WhereThen); err != nil {
			return fmt.Errorf("sequence 规则 %q: %w", r.Name, err)
		}
	}
	for _, r := range c.Rules.Sliding {
		if r.Type == "" {
			return fmt.Errorf("sliding 规则 %q 缺少 type", r.Name)
		}
		if r.WindowSec <= 0 || r.Threshold <= 0 {
			return fmt.Errorf("sliding 规则 %q 的 window_sec/threshold 必须为正", r.Name)
		}
		if err := validateCond(r.Where); err != nil {
			return fmt.Errorf("sliding 规则 %q: %w", r.Name, err)
		}
	}
	for _, r := range c.Rules.Shocks {
		if r.Series == "" {
			return fmt.Errorf("shock 规则 %q 缺少 series", r.Name)
		}
		if r.Threshold <= 0 {
			return fmt.Errorf("shock 规则 %q 的 threshold 必须为正", r.Name)
		}
	}
	return nil
}

func validateCond(c *FieldCond) error {
	if c == nil {
		return nil
	}
	if c.Field == "" {
		return fmt.Errorf("条件缺少 field")
	}
	switch c.Op {
	case "<", "<=", ">", ">=":
		return nil
	default:
		return fmt.Errorf("条件操作符非法: %q", c.Op)
	}
}

// Matches 判断数值是否满足条件。
func (c *FieldCond) Matches(v float64) bool {
	if c == nil {
		return true
	}
	switch c.Op {
	case "<":
		return v < c.Value
	case "<=":
		return v <= c.Value
	case ">":
		return v > c.Value
	case ">=":
		return v >= c.Value
	}
	return false
}
