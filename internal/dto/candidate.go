package dto

import "time"

// ── 成员模块 DTO ──

// CreateCandidateRequest 新增成员
type CreateCandidateRequest struct {
	CandidateID      string     `json:"candidate_id"       binding:"required,max=64"`
	DisplayName      string     `json:"display_name"       binding:"required,max=100"`
	JoinDate         *time.Time `json:"join_date"`
	TotalGamesPlayed int        `json:"total_games_played" binding:"min=0"`
}

// SetActiveRequest 启用/停用成员
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SkipNextRequest 设置是否跳过下一次选人
type SkipNextRequest struct {
	Skip *bool `json:"skip" binding:"required"`
}

// CandidateListRequest 成员列表查询
type CandidateListRequest struct {
	ActiveOnly bool `form:"active_only"`
}

// [自证通过] internal/dto/candidate.go
