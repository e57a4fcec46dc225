package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/texusred/rust-wipe-bot/config"
	"github.com/texusred/rust-wipe-bot/internal/metrics"
	"github.com/texusred/rust-wipe-bot/internal/model"
	"github.com/texusred/rust-wipe-bot/internal/notify"
	"github.com/texusred/rust-wipe-bot/internal/repository"
	"github.com/texusred/rust-wipe-bot/pkg/jwt"
)

// ── 测试辅助 ──

const testAdminPassword = "correct-horse"

var newYork = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

// nyTime 美东墙上时间
func nyTime(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, newYork)
}

// 2026-03-09 周一 08:00 美东，处于 results 时间窗
var testNow = nyTime(2026, time.March, 9, 8, 0)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("生成密码哈希失败: %v", err)
	}
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret-key-for-unit-testing",
			AccessTokenTTL: time.Hour,
			Admins:         map[string]string{"alice": string(hash)},
		},
		Schedule: config.ScheduleConfig{
			Timezone:          "America/New_York",
			WipeStart:         "Fri 19:00",
			PreSelectionStart: "Sat 12:00",
			ResultsStart:      "Mon 05:00",
			SelectionAt:       "Mon 05:00",
			TickInterval:      time.Minute,
			ReconcileInterval: 5 * time.Minute,
		},
		Selection: config.SelectionConfig{
			RosterSize:        4,
			RecencyPerWeek:    10,
			RecencyCapWeeks:   10,
			GamePenalty:       2,
			InterestBonus:     15,
			NoShowPenalty:     25,
			NoShowWindowWeeks: 6,
		},
		Approval: config.ApprovalConfig{Timeout: 24 * time.Hour},
	}
}

type testEnv struct {
	cfg        *config.Config
	candidates *mockCandidateRepo
	cycles     *mockCycleRepo
	history    *mockHistoryRepo
	interests  *mockInterestRepo
	store      *memConfigStore
	presenter  *notify.LogPresenter
	repo       *repository.Repository
	svc        *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testConfig(t))
}

func newTestEnvWithConfig(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	env := &testEnv{
		cfg:        cfg,
		candidates: newMockCandidateRepo(),
		cycles:     newMockCycleRepo(),
		history:    newMockHistoryRepo(),
		interests:  newMockInterestRepo(),
		store:      newMemConfigStore(),
		presenter:  notify.NewLogPresenter(zap.NewNop()),
	}
	env.repo = &repository.Repository{
		Candidate: env.candidates,
		Cycle:     env.cycles,
		History:   env.history,
		Interest:  env.interests,
		Config:    env.store,
	}

	svc, err := NewService(cfg, env.repo, jwt.NewManager(&cfg.Auth), nil, env.presenter,
		metrics.New(prometheus.NewRegistry()), zap.NewNop())
	if err != nil {
		t.Fatalf("NewService 失败: %v", err)
	}
	env.svc = svc
	env.setNow(testNow)
	return env
}

// setNow 固定所有服务的当前时间
func (e *testEnv) setNow(now time.Time) {
	clock := func() time.Time { return now }
	e.svc.State.(*stateService).now = clock
	e.svc.Selection.(*selectionService).now = clock
	e.svc.Approval.(*approvalService).now = clock
	e.svc.Candidate.(*candidateService).now = clock
	e.svc.Board.(*boardService).now = clock
}

// addCandidates 新增 n 个启用成员 c0..c(n-1)，第 i 个已参加 i 场
func (e *testEnv) addCandidates(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		e.addCandidate(t, model.Candidate{
			CandidateID:      fmt.Sprintf("c%d", i),
			DisplayName:      fmt.Sprintf("Player%d", i),
			JoinDate:         time.Date(2025, time.January, 1+i, 0, 0, 0, 0, time.UTC),
			TotalGamesPlayed: i,
			IsActive:         true,
		})
	}
}

func (e *testEnv) addCandidate(t *testing.T, c model.Candidate) {
	t.Helper()
	if err := e.candidates.Create(context.Background(), &c); err != nil {
		t.Fatalf("新增成员失败: %v", err)
	}
}

// activeCycle 创建一个进行中的周期
func (e *testEnv) activeCycle(t *testing.T, sel *model.Selection) *model.Cycle {
	t.Helper()
	start := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	cycle := &model.Cycle{
		StartDate: start,
		EndDate:   start.Add(cycleLength),
		Status:    model.CycleStatusActive,
		Selection: sel,
	}
	cycle.Version = 1
	if err := e.cycles.Create(context.Background(), cycle); err != nil {
		t.Fatalf("创建周期失败: %v", err)
	}
	return cycle
}

// submitPending 运行选人并提交审批
func (e *testEnv) submitPending(t *testing.T) *model.Selection {
	t.Helper()
	ctx := context.Background()
	sel, err := e.svc.Selection.RunSelection(ctx)
	if err != nil {
		t.Fatalf("RunSelection 失败: %v", err)
	}
	if _, err := e.svc.Approval.SubmitForApproval(ctx, sel); err != nil {
		t.Fatalf("SubmitForApproval 失败: %v", err)
	}
	return sel
}

// phase 当前存储的阶段
func (e *testEnv) phase(t *testing.T) model.Phase {
	t.Helper()
	p, err := e.svc.State.GetCurrentState(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentState 失败: %v", err)
	}
	return p
}

// bindBoard 绑定通知目标
func (e *testEnv) bindBoard(t *testing.T) {
	t.Helper()
	if err := e.svc.Board.Bind(context.Background(), "#wipe-board"); err != nil {
		t.Fatalf("Bind 失败: %v", err)
	}
}

// storedID 读取保存的消息 ID
func (e *testEnv) storedID(t *testing.T, key string) string {
	t.Helper()
	id, err := loadString(context.Background(), e.store, key)
	if err != nil {
		t.Fatalf("读取 %s 失败: %v", key, err)
	}
	return id
}
