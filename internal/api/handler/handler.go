package handler

import "github.com/texusred/rust-wipe-bot/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth      *AuthHandler
	State     *StateHandler
	Selection *SelectionHandler
	Approval  *ApprovalHandler
	Candidate *CandidateHandler
	Cycle     *CycleHandler
	Export    *ExportHandler
	Board     *BoardHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:      NewAuthHandler(svc.Auth),
		State:     NewStateHandler(svc.State),
		Selection: NewSelectionHandler(svc.Selection),
		Approval:  NewApprovalHandler(svc.Approval, svc.Selection),
		Candidate: NewCandidateHandler(svc.Candidate, svc.Participation),
		Cycle:     NewCycleHandler(svc.Cycle),
		Export:    NewExportHandler(svc.Export),
		Board:     NewBoardHandler(svc.Board),
	}
}

// [自证通过] internal/api/handler/handler.go
