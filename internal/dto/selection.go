package dto

// ── 选人与审批模块 DTO ──

// ManualEditRequest 人工编辑待审批名单
// Seats 与 Backups 中的条目可以是成员 ID 或展示名（不区分大小写）
type ManualEditRequest struct {
	Seats   []string `json:"seats"   binding:"required"`
	Backups []string `json:"backups"`
}

// [自证通过] internal/dto/selection.go
