// Package journal 用 SQLite 持久化每一笔日历价差的开平仓记录，
// 进程重启后据此恢复在仓列表。
package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 记录状态。
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

var ErrNotFound = errors.New("trade record not found")

// TradeRecord 一笔日历价差的完整生命周期。
// 价格金额统一以字符串落库，避免浮点精度漂移。
type TradeRecord struct {
	ID          string `gorm:"primaryKey"`
	Underlying  string `gorm:"index"`
	ShortSymbol string
	LongSymbol  string
	Status      string `gorm:"index"`

	Strike       string
	ShortExpiry  string // YYYY-MM-DD
	LongExpiry   string
	EarningsDate string // YYYY-MM-DD
	Timing       string // bmo / amc

	Quantity     int
	OpenOrderID  string
	OpenAvgPrice string // 开仓数量加权均价（debit 为正）
	OpenNotional string
	Commission   string
	OpenedAt     time.Time

	CloseOrderID  string
	CloseAvgPrice string
	CloseNotional string
	ClosedAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OpenPrice 开仓均价。
func (r *TradeRecord) OpenPrice() decimal.Decimal {
	return mustDecimal(r.OpenAvgPrice)
}

// RealizedPnL 已实现盈亏（每张 = 平仓收款 - 开仓支出，乘数 100）。
// 未平仓返回零。
func (r *TradeRecord) RealizedPnL() decimal.Decimal {
	if r.Status != StatusClosed {
		return decimal.Zero
	}
	return mustDecimal(r.OpenNotional).Add(mustDecimal(r.CloseNotional)).Neg()
}

func mustDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Store SQLite 交易日志本。
type Store struct {
	db *gorm.DB
}

// NewStore 打开（或创建）dbPath 指向的数据库并自动建表。
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if err := db.AutoMigrate(&TradeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal database: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenParams 开仓落库参数。
type OpenParams struct {
	Underlying   string
	ShortSymbol  string
	LongSymbol   string
	Strike       decimal.Decimal
	ShortExpiry  string
	LongExpiry   string
	EarningsDate string
	Timing       string
	Quantity     int
	OrderID      string
	AvgPrice     decimal.Decimal
	Notional     decimal.Decimal
	Commission   decimal.Decimal
}

// SaveOpen 记录一笔新开仓，返回记录 ID。
func (s *Store) SaveOpen(p OpenParams) (*TradeRecord, error) {
	rec := &TradeRecord{
		ID:           uuid.NewString(),
		Underlying:   p.Underlying,
		ShortSymbol:  p.ShortSymbol,
		LongSymbol:   p.LongSymbol,
		Status:       StatusOpen,
		Strike:       p.Strike.String(),
		ShortExpiry:  p.ShortExpiry,
		LongExpiry:   p.LongExpiry,
		EarningsDate: p.EarningsDate,
		Timing:       p.Timing,
		Quantity:     p.Quantity,
		OpenOrderID:  p.OrderID,
		OpenAvgPrice: p.AvgPrice.String(),
		OpenNotional: p.Notional.String(),
		Commission:   p.Commission.String(),
		OpenedAt:     time.Now().UTC(),
	}
	if err := s.db.Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to save open trade: %w", err)
	}
	return rec, nil
}

// ListOpen 按开仓时间升序返回所有在仓记录。
func (s *Store) ListOpen() ([]TradeRecord, error) {
	var recs []TradeRecord
	err := s.db.Where("status = ?", StatusOpen).Order("opened_at asc").Find(&recs).Error
	return recs, err
}

// OpenByUnderlying 某标的的在仓记录。没有返回 (nil, nil)。
func (s *Store) OpenByUnderlying(underlying string) (*TradeRecord, error) {
	var rec TradeRecord
	err := s.db.Where("status = ? AND underlying = ?", StatusOpen, underlying).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CloseParams 平仓落库参数。
type CloseParams struct {
	OrderID    string
	AvgPrice   decimal.Decimal
	Notional   decimal.Decimal
	Commission decimal.Decimal
}

// MarkClosed 把记录置为已平仓。记录不存在或已平仓时返回 ErrNotFound。
func (s *Store) MarkClosed(id string, p CloseParams) error {
	now := time.Now().UTC()
	var rec TradeRecord
	err := s.db.Where("id = ? AND status = ?", id, StatusOpen).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	rec.Status = StatusClosed
	rec.CloseOrderID = p.OrderID
	rec.CloseAvgPrice = p.AvgPrice.String()
	rec.CloseNotional = p.Notional.String()
	rec.Commission = mustDecimal(rec.Commission).Add(p.Commission).String()
	rec.ClosedAt = &now
	return s.db.Save(&rec).Error
}

// History 最近 limit 条记录（含已平仓），按更新时间降序。
func (s *Store) History(limit int) ([]TradeRecord, error) {
	var recs []TradeRecord
	err := s.db.Order("updated_at desc").Limit(limit).Find(&recs).Error
	return recs, err
}
