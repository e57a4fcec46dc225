package selection

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/texusred/rust-wipe-bot/internal/model"
)

var (
	ErrInsufficientPool   = errors.New("可选成员不足")
	ErrInvariantViolation = errors.New("存在多名锁定成员")
)

// Engine 选人引擎，纯函数，不访问存储
type Engine struct {
	RosterSize int
	Scorer     Scorer
}

// NewEngine 创建选人引擎
func NewEngine(rosterSize int, scorer Scorer) *Engine {
	return &Engine{RosterSize: rosterSize, Scorer: scorer}
}

// Ranked 评分后的成员
type Ranked struct {
	Candidate model.Candidate
	Breakdown model.ScoreBreakdown
}

// Score 总分
func (r Ranked) Score() int { return r.Breakdown.Total() }

func (r Ranked) seat(status model.SeatStatus) model.Seat {
	return model.Seat{
		CandidateID: r.Candidate.CandidateID,
		DisplayName: r.Candidate.DisplayName,
		Score:       r.Score(),
		Breakdown:   r.Breakdown,
		Status:      status,
	}
}

// Eligible 可参与选人：启用且未申请跳过
func Eligible(c *model.Candidate) bool {
	return c.IsActive && !c.SkipNext
}

// Seat 为单个成员计算评分并生成名单条目
func (e *Engine) Seat(c *model.Candidate, history HistoryLookup, status model.SeatStatus) model.Seat {
	if history == nil {
		history = noHistory{}
	}
	r := Ranked{Candidate: *c, Breakdown: e.Scorer.Score(c, history.Signals(c.CandidateID))}
	return r.seat(status)
}

// Rank 对成员评分并按确定性规则排序（不区分锁定）
func (e *Engine) Rank(candidates []model.Candidate, history HistoryLookup) []Ranked {
	if history == nil {
		history = noHistory{}
	}
	ranked := make([]Ranked, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		ranked = append(ranked, Ranked{Candidate: *c, Breakdown: e.Scorer.Score(c, history.Signals(c.CandidateID))})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	return ranked
}

// less 分数高者优先；同分时场次少者、加入早者、ID 小者优先
func less(a, b Ranked) bool {
	if a.Score() != b.Score() {
		return a.Score() > b.Score()
	}
	if a.Candidate.TotalGamesPlayed != b.Candidate.TotalGamesPlayed {
		return a.Candidate.TotalGamesPlayed < b.Candidate.TotalGamesPlayed
	}
	if !a.Candidate.JoinDate.Equal(b.Candidate.JoinDate) {
		return a.Candidate.JoinDate.Before(b.Candidate.JoinDate)
	}
	return a.Candidate.CandidateID < b.Candidate.CandidateID
}

// Run 生成选人结果
//
// 锁定且可选的成员固定占第 1 席；其余按评分排序依次填满 RosterSize 个席位，
// 剩余成员按同一顺序进入候补。若最后一席的分数在入选与落选成员之间并列，
// 仍按确定性规则暂定入选者，同时记录平分描述交由人工确认。
func (e *Engine) Run(candidates []model.Candidate, history HistoryLookup, now time.Time) (*model.Selection, error) {
	n := e.RosterSize

	var pinned *model.Candidate
	pinnedCount := 0
	pool := make([]model.Candidate, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if c.IsLocked {
			pinnedCount++
		}
		if !Eligible(c) {
			continue
		}
		if c.IsLocked {
			pinned = c
			continue
		}
		pool = append(pool, *c)
	}

	if pinnedCount > 1 {
		return nil, fmt.Errorf("%w: %d 名成员处于锁定状态", ErrInvariantViolation, pinnedCount)
	}

	eligible := len(pool)
	if pinned != nil {
		eligible++
	}
	if eligible < n {
		return nil, fmt.Errorf("%w: 需要 %d 人，仅有 %d 人", ErrInsufficientPool, n, eligible)
	}

	result := &model.Selection{
		Selected:    make([]model.Seat, 0, n),
		Backup:      []model.Seat{},
		Ties:        []model.TieDescriptor{},
		GeneratedAt: now,
		Provenance:  model.ProvenanceAlgorithm,
	}
	if pinned != nil {
		result.Selected = append(result.Selected, e.Seat(pinned, history, model.SeatLocked))
	}

	ranked := e.Rank(pool, history)
	open := n - len(result.Selected)
	for i, r := range ranked {
		if i < open {
			result.Selected = append(result.Selected, r.seat(model.SeatPending))
		} else {
			result.Backup = append(result.Backup, r.seat(model.SeatBackup))
		}
	}

	if tie, ok := boundaryTie(ranked, open, n); ok {
		result.Ties = append(result.Ties, tie)
	}
	return result, nil
}

// boundaryTie 检查最后一个开放席位的分数是否同时出现在入选与落选成员中
func boundaryTie(ranked []Ranked, open, seat int) (model.TieDescriptor, bool) {
	if open <= 0 || len(ranked) <= open {
		return model.TieDescriptor{}, false
	}
	boundary := ranked[open-1].Score()
	if ranked[open].Score() != boundary {
		return model.TieDescriptor{}, false
	}

	tie := model.TieDescriptor{Seat: seat, Score: boundary}
	for i, r := range ranked {
		if r.Score() != boundary {
			continue
		}
		tie.Candidates = append(tie.Candidates, model.TieCandidate{
			CandidateID: r.Candidate.CandidateID,
			DisplayName: r.Candidate.DisplayName,
			Selected:    i < open,
		})
	}
	return tie, true
}

// [自证通过] internal/selection/engine.go
