// Package store 用 Gorm + SQLite 持久化衍生信号与回测摘要。
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"vigil/internal/backtest"
	"vigil/internal/event"
)

// Store 封装底层数据库连接。
type Store struct {
	db *gorm.DB
}

type signalModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	EventID       string         `gorm:"column:event_uuid;index"`
	Type          string         `gorm:"column:type;index"`
	Key           string         `gorm:"column:key;index"`
	TS            int64          `gorm:"column:ts;index"`
	Payload       datatypes.JSON `gorm:"column:payload"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (signalModel) TableName() string { return "signals" }

type backtestModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Name          string         `gorm:"column:name;index"`
	TotalReturn   float64        `gorm:"column:total_return"`
	Sharpe        float64        `gorm:"column:sharpe"`
	MaxDrawdown   float64        `gorm:"column:max_drawdown"`
	TradeCount    int            `gorm:"column:trade_count"`
	Details       datatypes.JSON `gorm:"column:details"`
	CreatedAtUnix int64          `gorm:"column:created_at;index"`
}

func (backtestModel) TableName() string { return "backtests" }

// New 打开（必要时创建）path 指向的 SQLite 库并完成迁移。
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: 数据库路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&signalModel{}, &backtestModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL 下限制连接数，降低锁竞争。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close 关闭底层连接。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AppendSignal 记录一条衍生事件。
func (s *Store) AppendSignal(ctx context.Context, evt event.Event) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store 未初始化")
	}
	payload, _ := json.Marshal(evt.Data)
	model := signalModel{
		EventID:       evt.ID,
		Type:          evt.Type,
		Key:           evt.Key,
		TS:            evt.TS,
		Payload:       datatypes.JSON(payload),
		CreatedAtUnix: time.Now().Unix(),
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// ListRecentSignals 按时间倒序返回最近的衍生事件。
func (s *Store) ListRecentSignals(ctx context.Context, limit int) ([]event.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []signalModel
	if err := s.db.WithContext(ctx).
		Order("ts DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]event.Event, 0, len(models))
	for _, m := range models {
		var data map[string]any
		if len(m.Payload) > 0 {
			_ = json.Unmarshal(m.Payload, &data)
		}
		out = append(out, event.Event{
			Type: m.Type,
			TS:   m.TS,
			ID:   m.EventID,
			Key:  m.Key,
			Data: data,
		})
	}
	return out, nil
}

// SaveBacktest 落一条回测摘要，交易明细随 Details 一并序列化。
func (s *Store) SaveBacktest(ctx context.Context, res backtest.Result) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store 未初始化")
	}
	details := map[string]any{
		"details": res.Details,
		"trades":  res.Trades,
	}
	payload, _ := json.Marshal(details)
	model := backtestModel{
		Name:          res.Name,
		TotalReturn:   res.TotalReturn,
		Sharpe:        res.Sharpe,
		MaxDrawdown:   res.MaxDrawdown,
		TradeCount:    res.BuyCount(),
		Details:       datatypes.JSON(payload),
		CreatedAtUnix: time.Now().Unix(),
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// BacktestSummary 回测历史的列表视图。
type BacktestSummary struct {
	Name        string    `json:"name"`
	TotalReturn float64   `json:"total_return"`
	Sharpe      float64   `json:"sharpe"`
	MaxDrawdown float64   `json:"max_drawdown"`
	TradeCount  int       `json:"trade_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListBacktests 按入库时间倒序返回回测摘要。
func (s *Store) ListBacktests(ctx context.Context, limit int) ([]BacktestSummary, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var models []backtestModel
	if err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]BacktestSummary, 0, len(models))
	for _, m := range models {
		out = append(out, BacktestSummary{
			Name:        m.Name,
			TotalReturn: m.TotalReturn,
			Sharpe:      m.Sharpe,
			MaxDrawdown: m.MaxDrawdown,
			TradeCount:  m.TradeCount,
			CreatedAt:   time.Unix(m.CreatedAtUnix, 0),
		})
	}
	return out, nil
}
