package model

import "time"

// ConfigStore 中使用的键
const (
	ConfigKeyStateRecord       = "state_record"
	ConfigKeyPendingSelection  = "pending_selection"
	ConfigKeySelectionDeadline = "selection_deadline"
	ConfigKeyBoardTarget       = "board_target"
	ConfigKeyBoardMessageID    = "board_message_id"
	ConfigKeyApprovalMessageID = "approval_message_id"
)

// ConfigEntry 版本化键值 — 对应 config_entries
//
// 删除只留下墓碑（Deleted=true，版本号继续递增），同一个键重新写入时
// 版本号从墓碑继续，旧版本号不会再次出现。
type ConfigEntry struct {
	Key       string    `gorm:"column:config_key;type:varchar(100);primaryKey" json:"key"`
	Value     string    `gorm:"type:text;not null"                 json:"value"`
	Version   int       `gorm:"not null;default:1"                 json:"version"`
	Deleted   bool      `gorm:"not null;default:false"             json:"-"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ConfigEntry) TableName() string { return "config_entries" }

// [自证通过] internal/model/config_entry.go
