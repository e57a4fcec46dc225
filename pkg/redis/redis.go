package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/texusred/rust-wipe-bot/config"
	pkgerrors "github.com/texusred/rust-wipe-bot/pkg/errors"
)

// ErrKeyNotFound 键不存在
var ErrKeyNotFound = errors.New("键不存在")

// Client Redis 客户端封装
// 用于版本化键值存储、Token 黑名单与接口限流
type Client struct {
	rdb    goredis.UniversalClient
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewFromClient 复用已有连接（测试或共享连接池）
func NewFromClient(rdb goredis.UniversalClient, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// ════════════════════════════════════════════════════════════
// 版本化键值存储
// 每个键对应一个 hash：value / version / deleted / updated_at(ms)
// 删除只置 deleted=1，版本号保留并继续递增
// ════════════════════════════════════════════════════════════

const kvPrefix = "wipe:kv:"

// Entry 版本化键值
type Entry struct {
	Value     string
	Version   int
	UpdatedAt time.Time
}

// Get 读取键值；不存在或已删除时返回 ErrKeyNotFound
func (c *Client) Get(ctx context.Context, key string) (*Entry, error) {
	fields, err := c.rdb.HGetAll(ctx, kvPrefix+key).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields["deleted"] == "1" {
		return nil, ErrKeyNotFound
	}

	version, err := strconv.Atoi(fields["version"])
	if err != nil {
		return nil, fmt.Errorf("解析版本号失败 (%s): %w", key, err)
	}
	entry := &Entry{Value: fields["value"], Version: version}
	if ms, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		entry.UpdatedAt = time.UnixMilli(ms)
	}
	return entry, nil
}

// Set 无条件写入，版本号自增，返回新版本
func (c *Client) Set(ctx context.Context, key, value string) (int, error) {
	k := kvPrefix + key
	var incr *goredis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		incr = p.HIncrBy(ctx, k, "version", 1)
		p.HSet(ctx, k, "value", value, "deleted", 0, "updated_at", time.Now().UnixMilli())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

// CompareAndSwap 当前版本等于 version 时写入；version=0 表示仅在键不存在时写入
//
// 已删除的键保留版本号，重新写入时在其基础上递增
func (c *Client) CompareAndSwap(ctx context.Context, key string, version int, value string) (int, error) {
	k := kvPrefix + key
	next := 0

	txf := func(tx *goredis.Tx) error {
		current, live, err := currentVersion(ctx, tx, k)
		if err != nil {
			return err
		}
		switch {
		case version == 0 && live:
			return pkgerrors.ErrOptimisticLock
		case version != 0 && (!live || current != version):
			return pkgerrors.ErrOptimisticLock
		}
		next = current + 1
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, k, "value", value, "version", next, "deleted", 0, "updated_at", time.Now().UnixMilli())
			return nil
		})
		return err
	}

	if err := c.rdb.Watch(ctx, txf, k); err != nil {
		if errors.Is(err, goredis.TxFailedErr) {
			return 0, pkgerrors.ErrOptimisticLock
		}
		return 0, err
	}
	return next, nil
}

// Delete 无条件删除，留下带版本号的墓碑
func (c *Client) Delete(ctx context.Context, key string) error {
	k := kvPrefix + key
	_, err := c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HIncrBy(ctx, k, "version", 1)
		p.HSet(ctx, k, "value", "", "deleted", 1, "updated_at", time.Now().UnixMilli())
		return nil
	})
	return err
}

// DeleteVersion 当前版本等于 version 时删除；键不存在返回 ErrKeyNotFound
func (c *Client) DeleteVersion(ctx context.Context, key string, version int) error {
	k := kvPrefix + key

	txf := func(tx *goredis.Tx) error {
		current, live, err := currentVersion(ctx, tx, k)
		if err != nil {
			return err
		}
		if !live {
			return ErrKeyNotFound
		}
		if current != version {
			return pkgerrors.ErrOptimisticLock
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, k, "value", "", "version", current+1, "deleted", 1, "updated_at", time.Now().UnixMilli())
			return nil
		})
		return err
	}

	err := c.rdb.Watch(ctx, txf, k)
	if errors.Is(err, goredis.TxFailedErr) {
		return pkgerrors.ErrOptimisticLock
	}
	return err
}

// currentVersion 返回版本号与键是否存活；键从未写入时为 0,false
func currentVersion(ctx context.Context, tx *goredis.Tx, key string) (int, bool, error) {
	vals, err := tx.HMGet(ctx, key, "version", "deleted").Result()
	if err != nil {
		return 0, false, err
	}
	raw, ok := vals[0].(string)
	if !ok {
		return 0, false, nil
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("解析版本号失败 (%s): %w", key, err)
	}
	deleted, _ := vals[1].(string)
	return version, deleted != "1", nil
}

// ── Token 黑名单 ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // Token 已过期，无需加入黑名单
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── 限流 ──

// CheckRateLimit 固定窗口计数，窗口内请求数不超过 limit 时放行
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	var incr *goredis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
