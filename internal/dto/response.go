package dto

import (
	"time"

	"github.com/texusred/rust-wipe-bot/internal/model"
)

// ── 认证模块响应 ──

// TokenResponse 登录成功响应
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"` // Access Token 有效期（秒）
	Username    string `json:"username"`
}

// ── 阶段模块响应 ──

// StateResponse 当前阶段
type StateResponse struct {
	Phase          model.Phase `json:"phase"`
	Label          string      `json:"label"`
	ChangedAt      time.Time   `json:"changed_at"`
	Reason         string      `json:"reason"`
	Automatic      bool        `json:"automatic"`
	CalculatedNow  model.Phase `json:"calculated_now"`
	NextTransition time.Time   `json:"next_transition"`
	NextPhase      model.Phase `json:"next_phase"`
}

// ReconcileResponse 校准结果
type ReconcileResponse struct {
	Changed bool        `json:"changed"`
	Phase   model.Phase `json:"phase"`
}

// NextTransitionResponse 下一次阶段切换
type NextTransitionResponse struct {
	At    time.Time   `json:"at"`
	Phase model.Phase `json:"phase"`
}

// ── 审批模块响应 ──

// PendingResponse 待审批名单
type PendingResponse struct {
	Selection *model.Selection `json:"selection"`
	Deadline  *time.Time       `json:"deadline,omitempty"`
	Version   int              `json:"version"`
}

// AutoApprovalResponse 超时检查结果
type AutoApprovalResponse struct {
	Committed bool `json:"committed"`
}

// ── 成员模块响应 ──

// CandidateScoreResponse 成员当前评分
type CandidateScoreResponse struct {
	Rank        int                  `json:"rank"`
	CandidateID string               `json:"candidate_id"`
	DisplayName string               `json:"display_name"`
	Score       int                  `json:"score"`
	Breakdown   model.ScoreBreakdown `json:"breakdown"`
	IsLocked    bool                 `json:"is_locked"`
	SkipNext    bool                 `json:"skip_next"`
}

// PassTurnResponse 让位结果
type PassTurnResponse struct {
	Removed  model.Seat `json:"removed"`
	Promoted model.Seat `json:"promoted"`
}

// [自证通过] internal/dto/response.go
