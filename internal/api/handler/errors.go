package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/texusred/rust-wipe-bot/internal/selection"
	"github.com/texusred/rust-wipe-bot/internal/service"
	pkgerrors "github.com/texusred/rust-wipe-bot/pkg/errors"
	"github.com/texusred/rust-wipe-bot/pkg/response"
)

// 业务错误码
// 10xxx 通用 | 11xxx 认证 | 12xxx 阶段 | 13xxx 选人 | 14xxx 审批
// 15xxx 成员 | 16xxx 周期与导出 | 17xxx 面板
const (
	codeBadRequest  = 10001
	codeStoreFailed = 10006

	codeInvalidCredentials = 11001

	codeInvalidState = 12001

	codeInsufficientPool   = 13001
	codeInvariantViolation = 13002

	codePendingNotFound = 14001
	codePendingConflict = 14002
	codeManualEdit      = 14003

	codeCandidateNotFound   = 15001
	codeCandidateExists     = 15002
	codeCandidateInactive   = 15003
	codeAnotherLocked       = 15004
	codeNoLockedCandidate   = 15005
	codeInterestExpressed   = 15006
	codeNotSelected         = 15101
	codeSeatLocked          = 15102
	codeAlreadyConfirmed    = 15103
	codeNoBackupAvailable   = 15104
	codeRosterConflict      = 15105
	codeCycleNotFound       = 16001
	codeNoCommitted         = 16002
	codeBoardTargetRequired = 17001
)

// handleServiceError 将 service 层错误映射为统一响应
func handleServiceError(c *gin.Context, err error) {
	var validation *service.ValidationError
	if errors.As(err, &validation) {
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, codeManualEdit, "名单校验失败", gin.H{
			"slot":   validation.Slot,
			"reason": validation.Reason,
		})
		return
	}

	switch {
	// ── 阶段 ──
	case errors.Is(err, service.ErrInvalidState):
		response.BadRequest(c, codeInvalidState, "无效的阶段")

	// ── 选人 ──
	case errors.Is(err, selection.ErrInsufficientPool):
		response.Unprocessable(c, codeInsufficientPool, "可选成员不足，无法组成名单")
	case errors.Is(err, selection.ErrInvariantViolation):
		response.Error(c, http.StatusConflict, codeInvariantViolation, "存在多名固定席位成员，请先修正")

	// ── 审批 ──
	case errors.Is(err, service.ErrPendingNotFound):
		response.NotFound(c, codePendingNotFound, "当前没有待审批的名单")
	case errors.Is(err, service.ErrPendingConflict):
		response.Conflict(c, codePendingConflict, "待审批名单已被其他操作修改，请刷新后重试")

	// ── 成员 ──
	case errors.Is(err, service.ErrCandidateNotFound):
		response.NotFound(c, codeCandidateNotFound, "成员不存在")
	case errors.Is(err, service.ErrCandidateExists):
		response.Conflict(c, codeCandidateExists, "成员 ID 已存在")
	case errors.Is(err, service.ErrCandidateInactive):
		response.Unprocessable(c, codeCandidateInactive, "成员未启用")
	case errors.Is(err, service.ErrAnotherLocked):
		response.Conflict(c, codeAnotherLocked, "已有其他成员占用固定席位")
	case errors.Is(err, service.ErrNoLockedCandidate):
		response.NotFound(c, codeNoLockedCandidate, "当前没有固定席位成员")
	case errors.Is(err, service.ErrInterestAlreadyExpressed):
		response.Conflict(c, codeInterestExpressed, "本周已表达过参与意愿")

	// ── 参与确认 ──
	case errors.Is(err, service.ErrNotSelected):
		response.NotFound(c, codeNotSelected, "该成员不在本周名单中")
	case errors.Is(err, service.ErrSeatLocked):
		response.Conflict(c, codeSeatLocked, "固定席位无需确认，也不能让出")
	case errors.Is(err, service.ErrAlreadyConfirmed):
		response.Conflict(c, codeAlreadyConfirmed, "已确认参与")
	case errors.Is(err, service.ErrNoBackupAvailable):
		response.Conflict(c, codeNoBackupAvailable, "没有可递补的候补成员")
	case errors.Is(err, service.ErrRosterConflict):
		response.Conflict(c, codeRosterConflict, "名单已被其他操作修改，请重试")

	// ── 周期 ──
	case errors.Is(err, service.ErrCycleNotFound):
		response.NotFound(c, codeCycleNotFound, "当前没有进行中的周期")
	case errors.Is(err, service.ErrNoCommittedSelection):
		response.NotFound(c, codeNoCommitted, "当前周期尚未提交名单")

	// ── 面板 ──
	case errors.Is(err, service.ErrBoardTargetEmpty):
		response.BadRequest(c, codeBoardTargetRequired, "通知目标不能为空")

	default:
		var persistence *pkgerrors.PersistenceError
		if errors.As(err, &persistence) {
			_ = c.Error(err)
			response.Error(c, http.StatusServiceUnavailable, codeStoreFailed, "存储暂不可用，请稍后重试")
			return
		}
		_ = c.Error(err)
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/errors.go
