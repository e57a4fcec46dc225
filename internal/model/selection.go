package model

import (
	"fmt"
	"strings"
	"time"
)

// ════════════════════════════════════════════════════════════
// 席位状态
// ════════════════════════════════════════════════════════════

// SeatStatus 名单条目状态（封闭枚举）
type SeatStatus string

const (
	SeatLocked    SeatStatus = "locked"
	SeatPending   SeatStatus = "pending"
	SeatConfirmed SeatStatus = "confirmed"
	SeatBackup    SeatStatus = "backup"
)

// seatTransitions 合法的状态迁移
// locked 与 confirmed 在周期内为终态；离开名单（让位）不属于状态迁移，见 CanPass
var seatTransitions = map[SeatStatus][]SeatStatus{
	SeatLocked:    nil,
	SeatPending:   {SeatConfirmed},
	SeatConfirmed: nil,
	SeatBackup:    {SeatPending},
}

// Valid 是否为已知状态
func (s SeatStatus) Valid() bool {
	_, ok := seatTransitions[s]
	return ok
}

// CanTransitionTo 是否允许迁移到 next
func (s SeatStatus) CanTransitionTo(next SeatStatus) bool {
	for _, allowed := range seatTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanPass 是否允许让出席位
func (s SeatStatus) CanPass() bool {
	return s == SeatPending || s == SeatConfirmed
}

// ════════════════════════════════════════════════════════════
// 选人结果
// ════════════════════════════════════════════════════════════

// ProvenanceAlgorithm 算法生成的名单来源
const ProvenanceAlgorithm = "algorithm v2"

// ManualProvenance 人工修改的名单来源
func ManualProvenance(actor string) string {
	return "manual override by " + actor
}

// IsManualProvenance 是否为人工修改的名单
func IsManualProvenance(provenance string) bool {
	return strings.HasPrefix(provenance, "manual override by ")
}

// ScoreBreakdown 评分明细，各项相加即总分
type ScoreBreakdown struct {
	WeeksSinceLastPlayed int  `json:"weeks_since_last_played"` // 从未参加为 99
	Recency              int  `json:"recency"`
	Participation        int  `json:"participation"`
	Interest             int  `json:"interest"`
	NoShow               int  `json:"no_show"`
	RecentNoShows        int  `json:"recent_no_shows"`
	InterestExpressed    bool `json:"interest_expressed"`
}

// Total 总分
func (b ScoreBreakdown) Total() int {
	return b.Recency + b.Participation + b.Interest + b.NoShow
}

// Seat 名单条目
type Seat struct {
	CandidateID string         `json:"candidate_id"`
	DisplayName string         `json:"display_name"`
	Score       int            `json:"score"`
	Breakdown   ScoreBreakdown `json:"breakdown"`
	Status      SeatStatus     `json:"status"`
}

// TieCandidate 平分候选人，Selected 表示按确定性规则暂定入选
type TieCandidate struct {
	CandidateID string `json:"candidate_id"`
	DisplayName string `json:"display_name"`
	Selected    bool   `json:"selected"`
}

// TieDescriptor 最后一个席位处的平分描述
type TieDescriptor struct {
	Seat       int            `json:"seat"`
	Score      int            `json:"score"`
	Candidates []TieCandidate `json:"candidates"`
}

// Selection 选人结果（待审批或已提交）
type Selection struct {
	Selected    []Seat          `json:"selected"`
	Backup      []Seat          `json:"backup"`
	Ties        []TieDescriptor `json:"ties"`
	GeneratedAt time.Time       `json:"generated_at"`
	Provenance  string          `json:"provenance"`
}

// HasTies 是否存在待人工确认的平分
func (s *Selection) HasTies() bool {
	return len(s.Ties) > 0
}

// Clone 深拷贝，避免修改共享的切片
func (s *Selection) Clone() *Selection {
	if s == nil {
		return nil
	}
	out := *s
	out.Selected = append([]Seat(nil), s.Selected...)
	out.Backup = append([]Seat(nil), s.Backup...)
	out.Ties = make([]TieDescriptor, len(s.Ties))
	for i, t := range s.Ties {
		t.Candidates = append([]TieCandidate(nil), t.Candidates...)
		out.Ties[i] = t
	}
	return &out
}

// FindSelected 返回入选名单中该成员的下标，不存在返回 -1
func (s *Selection) FindSelected(candidateID string) int {
	for i, seat := range s.Selected {
		if seat.CandidateID == candidateID {
			return i
		}
	}
	return -1
}

// FindBackup 返回候补队列中该成员的下标，不存在返回 -1
func (s *Selection) FindBackup(candidateID string) int {
	for i, seat := range s.Backup {
		if seat.CandidateID == candidateID {
			return i
		}
	}
	return -1
}

// Summary 日志用摘要
func (s *Selection) Summary() string {
	names := make([]string, 0, len(s.Selected))
	for _, seat := range s.Selected {
		names = append(names, fmt.Sprintf("%s(%d)", seat.DisplayName, seat.Score))
	}
	return strings.Join(names, ", ")
}

// [自证通过] internal/model/selection.go
