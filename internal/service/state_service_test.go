package service

import (
	"context"
	"errors"
	"testing"

	"github.com/texusred/rust-wipe-bot/internal/model"
	pkgerrors "github.com/texusred/rust-wipe-bot/pkg/errors"
)

// ── 读取 ──

func TestStateService_GetCurrentState_Default(t *testing.T) {
	env := newTestEnv(t)

	if p := env.phase(t); p != model.PhaseResults {
		t.Errorf("无记录时期望 results，实际 %s", p)
	}
}

func TestStateService_GetCurrentState_PersistenceError(t *testing.T) {
	env := newTestEnv(t)
	env.store.getErr = errors.New("connection refused")

	_, err := env.svc.State.GetCurrentState(context.Background())
	var pe *pkgerrors.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("期望 PersistenceError，实际: %v", err)
	}
}

func TestStateService_CalculateCorrectState(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		at   int // 2026 年 3 月的日期
		hour int
		want model.Phase
	}{
		{"周一开服后", 9, 8, model.PhaseResults},
		{"周五开服", 13, 19, model.PhaseWipeInProgress},
		{"周五开服前一刻", 13, 18, model.PhaseResults},
		{"周六中午", 14, 12, model.PhasePreSelection},
		{"周日", 15, 10, model.PhasePreSelection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := env.svc.State.CalculateCorrectState(nyTime(2026, 3, tt.at, tt.hour, 0))
			if got != tt.want {
				t.Errorf("期望 %s，实际 %s", tt.want, got)
			}
		})
	}
}

// ── ForceState ──

func TestStateService_ForceState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	record, err := env.svc.State.ForceState(ctx, model.PhaseWipeInProgress, "manual test")
	if err != nil {
		t.Fatalf("ForceState 失败: %v", err)
	}
	if record.Automatic {
		t.Error("手动设置不应标记为自动")
	}
	if env.phase(t) != model.PhaseWipeInProgress {
		t.Errorf("期望 wipe_in_progress，实际 %s", env.phase(t))
	}

	stored, err := env.svc.State.GetStateRecord(ctx)
	if err != nil {
		t.Fatalf("GetStateRecord 失败: %v", err)
	}
	if stored.Reason != "manual test" {
		t.Errorf("期望原因 manual test，实际 %q", stored.Reason)
	}
	if !stored.ChangedAt.Equal(testNow.UTC()) {
		t.Errorf("期望 changed_at=%s，实际 %s", testNow.UTC(), stored.ChangedAt)
	}
}

func TestStateService_ForceState_Invalid(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.State.ForceState(context.Background(), model.Phase("sleeping"), "")
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("期望 ErrInvalidState，实际: %v", err)
	}
	if env.phase(t) != model.PhaseResults {
		t.Error("非法阶段不应改变当前阶段")
	}
}

func TestStateService_ForceState_RefreshesBoard(t *testing.T) {
	env := newTestEnv(t)
	env.bindBoard(t)
	ctx := context.Background()

	if _, err := env.svc.State.ForceState(ctx, model.PhasePreSelection, "open interest"); err != nil {
		t.Fatalf("ForceState 失败: %v", err)
	}

	view, ok := env.presenter.Last(env.storedID(t, model.ConfigKeyBoardMessageID))
	if !ok {
		t.Fatal("面板消息应存在")
	}
	if view.Phase != model.PhasePreSelection {
		t.Errorf("面板阶段期望 pre_selection，实际 %s", view.Phase)
	}
	if len(view.Controls) != 2 {
		t.Errorf("pre_selection 阶段期望 2 个控件，实际 %v", view.Controls)
	}
}

// ── Reconcile ──

func TestStateService_Reconcile_Transitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	saturday := nyTime(2026, 3, 14, 13, 0)

	changed, err := env.svc.State.Reconcile(ctx, saturday)
	if err != nil {
		t.Fatalf("Reconcile 失败: %v", err)
	}
	if !changed {
		t.Fatal("results → pre_selection 应发生切换")
	}

	record, _ := env.svc.State.GetStateRecord(ctx)
	if record.Phase != model.PhasePreSelection {
		t.Errorf("期望 pre_selection，实际 %s", record.Phase)
	}
	if !record.Automatic || record.Reason != ReasonAutomatic {
		t.Errorf("自动切换记录不正确: %+v", record)
	}

	changed, err = env.svc.State.Reconcile(ctx, saturday)
	if err != nil || changed {
		t.Errorf("重复校准应无变化，changed=%v err=%v", changed, err)
	}
}

func TestStateService_Reconcile_SuppressedByApprovedSelection(t *testing.T) {
	env := newTestEnv(t)
	env.addCandidates(t, 4)
	ctx := context.Background()

	env.activeCycle(t, &model.Selection{Selected: []model.Seat{{CandidateID: "c0", Status: model.SeatPending}}})

	// 名单已审批，周六仍保持 results
	changed, err := env.svc.State.Reconcile(ctx, nyTime(2026, 3, 14, 13, 0))
	if err != nil {
		t.Fatalf("Reconcile 失败: %v", err)
	}
	if changed || env.phase(t) != model.PhaseResults {
		t.Errorf("已审批名单应抑制切换，changed=%v phase=%s", changed, env.phase(t))
	}

	// 开服时间窗不受抑制
	changed, err = env.svc.State.Reconcile(ctx, nyTime(2026, 3, 13, 20, 0))
	if err != nil {
		t.Fatalf("Reconcile 失败: %v", err)
	}
	if !changed || env.phase(t) != model.PhaseWipeInProgress {
		t.Errorf("开服时间窗应切换，changed=%v phase=%s", changed, env.phase(t))
	}
}

func TestStateService_Reconcile_PendingDoesNotSuppress(t *testing.T) {
	env := newTestEnv(t)
	env.addCandidates(t, 4)
	ctx := context.Background()

	env.activeCycle(t, &model.Selection{Selected: []model.Seat{{CandidateID: "c0", Status: model.SeatPending}}})
	env.submitPending(t)

	changed, err := env.svc.State.Reconcile(ctx, nyTime(2026, 3, 14, 13, 0))
	if err != nil {
		t.Fatalf("Reconcile 失败: %v", err)
	}
	if !changed {
		t.Error("存在待审批名单时不应抑制切换")
	}
}

func TestStateService_Reconcile_ConcurrentWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 模拟读取后被并发写入：版本号不匹配时本次校准放弃
	if _, err := env.store.Set(ctx, model.ConfigKeyStateRecord, `{"phase":"results"}`); err != nil {
		t.Fatalf("Set 失败: %v", err)
	}
	svc := env.svc.State.(*stateService)
	_, version, err := svc.load(ctx)
	if err != nil {
		t.Fatalf("load 失败: %v", err)
	}
	if _, err := env.store.Set(ctx, model.ConfigKeyStateRecord, `{"phase":"results"}`); err != nil {
		t.Fatalf("Set 失败: %v", err)
	}
	_, err = svc.write(ctx, version, model.PhasePreSelection, ReasonAutomatic, true)
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，实际: %v", err)
	}
}

// ── Initialize / NextTransition ──

func TestStateService_Initialize(t *testing.T) {
	env := newTestEnv(t)

	if err := env.svc.State.Initialize(context.Background(), nyTime(2026, 3, 13, 21, 0)); err != nil {
		t.Fatalf("Initialize 失败: %v", err)
	}
	if env.phase(t) != model.PhaseWipeInProgress {
		t.Errorf("启动校准后期望 wipe_in_progress，实际 %s", env.phase(t))
	}
}

func TestStateService_GetNextTransitionTime(t *testing.T) {
	env := newTestEnv(t)

	at, phase := env.svc.State.GetNextTransitionTime(testNow)
	want := nyTime(2026, 3, 13, 19, 0)
	if !at.Equal(want) || phase != model.PhaseWipeInProgress {
		t.Errorf("期望 %s wipe_in_progress，实际 %s %s", want, at, phase)
	}
}
