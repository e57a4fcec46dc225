// Package notify 定义展示层协作者的边界。
// 具体的聊天平台传输不在本服务内实现，内置的 LogPresenter 将视图写入日志。
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/texusred/rust-wipe-bot/internal/model"
)

// ErrMessageNotFound 原消息已不存在，调用方应重新 Render
var ErrMessageNotFound = errors.New("消息不存在")

// Control 可操作的控件
type Control string

const (
	ControlApprove              Control = "approve"
	ControlRegenerate           Control = "regenerate"
	ControlManualEdit           Control = "manual_edit"
	ControlConfirmParticipation Control = "confirm_participation"
	ControlPassTurn             Control = "pass_turn"
	ControlExpressInterest      Control = "express_interest"
	ControlSkipNext             Control = "skip_next"
)

// ApprovalControls 待审批名单上的控件
var ApprovalControls = []Control{ControlApprove, ControlRegenerate, ControlManualEdit}

// Kind 视图类型
type Kind string

const (
	KindBoard    Kind = "board"    // 常驻状态面板
	KindApproval Kind = "approval" // 管理员审批消息
)

// View 一次渲染请求
type View struct {
	Kind           Kind               `json:"kind"`
	Phase          model.Phase        `json:"phase"`
	State          *model.StateRecord `json:"state,omitempty"`
	Selection      *model.Selection   `json:"selection,omitempty"`
	Pending        bool               `json:"pending"`
	Deadline       *time.Time         `json:"deadline,omitempty"`
	NextTransition *time.Time         `json:"next_transition,omitempty"`
	Controls       []Control          `json:"controls"`
	Note           string             `json:"note,omitempty"`
}

// Presenter 展示层协作者
type Presenter interface {
	// Render 渲染新消息并返回其标识
	Render(ctx context.Context, target string, view View) (string, error)
	// Update 原地更新已渲染的消息；消息不存在时返回 ErrMessageNotFound
	Update(ctx context.Context, target, messageID string, view View) error
}
