// Package workflow 负责财报日历价差的编排：何时开仓、开多少、
// 何时平仓，并把结果写进交易日志本。
package workflow

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// 财报发布时段。
const (
	TimingBMO = "bmo" // 盘前
	TimingAMC = "amc" // 盘后
)

const dateLayout = "2006-01-02"

// Candidate 一个待交易的财报标的。行权价和到期日由外部筛选器给出。
type Candidate struct {
	Symbol       string  `yaml:"symbol"`
	EarningsDate string  `yaml:"earningsDate"` // YYYY-MM-DD
	Timing       string  `yaml:"timing"`       // bmo / amc
	Strike       float64 `yaml:"strike"`
	ShortExpiry  string  `yaml:"shortExpiry"` // YYYY-MM-DD
	LongExpiry   string  `yaml:"longExpiry"`
}

// StrikeDecimal 行权价。
func (c Candidate) StrikeDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Strike)
}

// Validate 检查字段齐全且日期可解析。
func (c Candidate) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("candidate symbol is required")
	}
	if c.Timing != TimingBMO && c.Timing != TimingAMC {
		return fmt.Errorf("candidate %s: timing must be bmo or amc, got %q", c.Symbol, c.Timing)
	}
	if c.Strike <= 0 {
		return fmt.Errorf("candidate %s: strike must be > 0", c.Symbol)
	}
	for _, d := range []string{c.EarningsDate, c.ShortExpiry, c.LongExpiry} {
		if _, err := time.Parse(dateLayout, d); err != nil {
			return fmt.Errorf("candidate %s: bad date %q", c.Symbol, d)
		}
	}
	return nil
}

// CandidateProvider 候选标的来源。外部财报筛选器从这里接入。
type CandidateProvider interface {
	Candidates(ctx context.Context) ([]Candidate, error)
}

// FileCandidateProvider 从 yaml 文件读候选列表。
type FileCandidateProvider struct {
	Path string
}

func (p *FileCandidateProvider) Candidates(_ context.Context) ([]Candidate, error) {
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	var doc struct {
		Candidates []Candidate `yaml:"candidates"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse candidates yaml: %w", err)
	}
	for _, c := range doc.Candidates {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Candidates, nil
}
