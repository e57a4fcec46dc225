package selection

import (
	"time"

	"github.com/texusred/rust-wipe-bot/config"
	"github.com/texusred/rust-wipe-bot/internal/model"
)

// NeverPlayedWeeks 从未参加过的成员视为距上次参加 99 周
const NeverPlayedWeeks = 99

// Signals 单个成员的评分输入
type Signals struct {
	WeeksSinceLastPlayed int
	InterestExpressed    bool
	RecentNoShows        int
}

// HistoryLookup 按成员查询评分输入
type HistoryLookup interface {
	Signals(candidateID string) Signals
}

// Scorer 评分策略
type Scorer interface {
	Score(c *model.Candidate, s Signals) model.ScoreBreakdown
}

// ════════════════════════════════════════════════════════════
// 加权评分
// recency       = min(周数, 上限) × 每周分值
// participation = −场次扣分 × 累计场次
// interest      = 表达意愿时加分
// no_show       = −缺席扣分 × 窗口内缺席次数
// 每一项独立单调
// ════════════════════════════════════════════════════════════

// WeightedScorer 加权评分
type WeightedScorer struct {
	RecencyPerWeek  int
	RecencyCapWeeks int
	GamePenalty     int
	InterestBonus   int
	NoShowPenalty   int
}

// DefaultScorer 默认权重 10/10/2/15/25
func DefaultScorer() WeightedScorer {
	return WeightedScorer{
		RecencyPerWeek:  10,
		RecencyCapWeeks: 10,
		GamePenalty:     2,
		InterestBonus:   15,
		NoShowPenalty:   25,
	}
}

// NewScorer 从配置构造评分策略
func NewScorer(cfg *config.SelectionConfig) WeightedScorer {
	return WeightedScorer{
		RecencyPerWeek:  cfg.RecencyPerWeek,
		RecencyCapWeeks: cfg.RecencyCapWeeks,
		GamePenalty:     cfg.GamePenalty,
		InterestBonus:   cfg.InterestBonus,
		NoShowPenalty:   cfg.NoShowPenalty,
	}
}

// Score 计算评分明细
func (w WeightedScorer) Score(c *model.Candidate, s Signals) model.ScoreBreakdown {
	weeks := s.WeeksSinceLastPlayed
	if weeks < 0 {
		weeks = 0
	}
	capped := weeks
	if capped > w.RecencyCapWeeks {
		capped = w.RecencyCapWeeks
	}

	games := c.TotalGamesPlayed
	if games < 0 {
		games = 0
	}

	b := model.ScoreBreakdown{
		WeeksSinceLastPlayed: weeks,
		Recency:              capped * w.RecencyPerWeek,
		Participation:        -w.GamePenalty * games,
		NoShow:               -w.NoShowPenalty * s.RecentNoShows,
		RecentNoShows:        s.RecentNoShows,
		InterestExpressed:    s.InterestExpressed,
	}
	if s.InterestExpressed {
		b.Interest = w.InterestBonus
	}
	return b
}

// ════════════════════════════════════════════════════════════
// 历史索引
// ════════════════════════════════════════════════════════════

const week = 7 * 24 * time.Hour

// HistoryIndex 由历史记录与意愿表构建的查询索引
type HistoryIndex struct {
	lastPlayed map[string]time.Time
	noShows    map[string]int
	interested map[string]bool
	now        time.Time
}

// NewHistoryIndex 构建索引；缺席仅统计 now 之前 noShowWindowWeeks 周内的记录
func NewHistoryIndex(records []model.HistoryRecord, interests []model.InterestExpression, now time.Time, noShowWindowWeeks int) *HistoryIndex {
	idx := &HistoryIndex{
		lastPlayed: make(map[string]time.Time),
		noShows:    make(map[string]int),
		interested: make(map[string]bool, len(interests)),
		now:        now,
	}
	windowStart := now.Add(-time.Duration(noShowWindowWeeks) * week)

	for _, r := range records {
		if r.Participated {
			if last, ok := idx.lastPlayed[r.CandidateID]; !ok || r.RecordedAt.After(last) {
				idx.lastPlayed[r.CandidateID] = r.RecordedAt
			}
		}
		if r.NoShow && !r.RecordedAt.Before(windowStart) && !r.RecordedAt.After(now) {
			idx.noShows[r.CandidateID]++
		}
	}
	for _, ie := range interests {
		idx.interested[ie.CandidateID] = true
	}
	return idx
}

// Signals 实现 HistoryLookup
func (idx *HistoryIndex) Signals(candidateID string) Signals {
	s := Signals{
		WeeksSinceLastPlayed: NeverPlayedWeeks,
		InterestExpressed:    idx.interested[candidateID],
		RecentNoShows:        idx.noShows[candidateID],
	}
	if last, ok := idx.lastPlayed[candidateID]; ok {
		weeks := int(idx.now.Sub(last) / week)
		if weeks < 0 {
			weeks = 0
		}
		s.WeeksSinceLastPlayed = weeks
	}
	return s
}

type noHistory struct{}

func (noHistory) Signals(string) Signals {
	return Signals{WeeksSinceLastPlayed: NeverPlayedWeeks}
}
