// Package schedule 描述每周固定的阶段时间窗。
//
// 一周被三个时刻切分为三个左闭右开的时间窗：
//
//	wipe_start → pre_selection_start   wipe_in_progress
//	pre_selection_start → results_start pre_selection
//	results_start → 下一个 wipe_start    results
//
// 时刻按配置时区的墙上时间解释，夏令时切换不会产生空隙或重叠。
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // 容器镜像可能缺少系统时区库

	"github.com/texusred/rust-wipe-bot/config"
	"github.com/texusred/rust-wipe-bot/internal/model"
)

// ════════════════════════════════════════════════════════════
// WeeklyMark 每周固定时刻
// ════════════════════════════════════════════════════════════

// WeeklyMark 每周某天的某个时刻
type WeeklyMark struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseMark 解析 "Fri 19:00" 格式
func ParseMark(s string) (WeeklyMark, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return WeeklyMark{}, fmt.Errorf("时刻格式无效 %q，应为 \"Fri 19:00\"", s)
	}

	day := strings.ToLower(fields[0])
	if len(day) > 3 {
		day = day[:3]
	}
	wd, ok := weekdayNames[day]
	if !ok {
		return WeeklyMark{}, fmt.Errorf("星期无效 %q", fields[0])
	}

	hm := strings.SplitN(fields[1], ":", 2)
	if len(hm) != 2 {
		return WeeklyMark{}, fmt.Errorf("时间格式无效 %q", fields[1])
	}
	hour, err := strconv.Atoi(hm[0])
	if err != nil || hour < 0 || hour > 23 {
		return WeeklyMark{}, fmt.Errorf("小时无效 %q", hm[0])
	}
	minute, err := strconv.Atoi(hm[1])
	if err != nil || minute < 0 || minute > 59 {
		return WeeklyMark{}, fmt.Errorf("分钟无效 %q", hm[1])
	}

	return WeeklyMark{Weekday: wd, Hour: hour, Minute: minute}, nil
}

// String 还原为 "Fri 19:00"
func (m WeeklyMark) String() string {
	return fmt.Sprintf("%s %02d:%02d", m.Weekday.String()[:3], m.Hour, m.Minute)
}

// offset 距周日 00:00 的分钟数，仅用于比较先后
func (m WeeklyMark) offset() int {
	return int(m.Weekday)*24*60 + m.Hour*60 + m.Minute
}

// in 返回 t 所在周（周日开始）中该时刻对应的瞬间
func (m WeeklyMark) in(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	sunday := local.AddDate(0, 0, -int(local.Weekday()))
	return time.Date(sunday.Year(), sunday.Month(), sunday.Day()+int(m.Weekday), m.Hour, m.Minute, 0, 0, loc)
}

// NextAfter 返回严格晚于 t 的下一个该时刻
func (m WeeklyMark) NextAfter(t time.Time, loc *time.Location) time.Time {
	candidate := m.in(t, loc)
	if !candidate.After(t) {
		candidate = m.in(t.In(loc).AddDate(0, 0, 7), loc)
		// 夏令时跳变可能让按周推算的墙上时间仍不晚于 t
		for !candidate.After(t) {
			candidate = m.in(candidate.AddDate(0, 0, 7), loc)
		}
	}
	return candidate
}

// LastAtOrBefore 返回不晚于 t 的最近一个该时刻
func (m WeeklyMark) LastAtOrBefore(t time.Time, loc *time.Location) time.Time {
	candidate := m.in(t, loc)
	for candidate.After(t) {
		candidate = m.in(candidate.In(loc).AddDate(0, 0, -7), loc)
	}
	return candidate
}

// ════════════════════════════════════════════════════════════
// WeeklySchedule 阶段时间窗
// ════════════════════════════════════════════════════════════

// WeeklySchedule 三个阶段起点构成的周历
type WeeklySchedule struct {
	Location          *time.Location
	WipeStart         WeeklyMark
	PreSelectionStart WeeklyMark
	ResultsStart      WeeklyMark
}

// boundary 一个阶段的起点
type boundary struct {
	mark  WeeklyMark
	phase model.Phase
}

// New 从配置构造周历
func New(cfg *config.ScheduleConfig) (*WeeklySchedule, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("加载时区失败: %w", err)
	}
	wipe, err := ParseMark(cfg.WipeStart)
	if err != nil {
		return nil, fmt.Errorf("wipe_start: %w", err)
	}
	pre, err := ParseMark(cfg.PreSelectionStart)
	if err != nil {
		return nil, fmt.Errorf("pre_selection_start: %w", err)
	}
	results, err := ParseMark(cfg.ResultsStart)
	if err != nil {
		return nil, fmt.Errorf("results_start: %w", err)
	}

	s := &WeeklySchedule{Location: loc, WipeStart: wipe, PreSelectionStart: pre, ResultsStart: results}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Default 美东时间 Fri 19:00 / Sat 12:00 / Mon 05:00
func Default() *WeeklySchedule {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return &WeeklySchedule{
		Location:          loc,
		WipeStart:         WeeklyMark{Weekday: time.Friday, Hour: 19},
		PreSelectionStart: WeeklyMark{Weekday: time.Saturday, Hour: 12},
		ResultsStart:      WeeklyMark{Weekday: time.Monday, Hour: 5},
	}
}

// validate 三个时刻必须互不相同，且沿一周循环依次为 wipe → pre → results
func (s *WeeklySchedule) validate() error {
	w, p, r := s.WipeStart.offset(), s.PreSelectionStart.offset(), s.ResultsStart.offset()
	if w == p || p == r || r == w {
		return fmt.Errorf("阶段起点不能重合")
	}
	const weekMinutes = 7 * 24 * 60
	dist := func(from, to int) int { return ((to-from)%weekMinutes + weekMinutes) % weekMinutes }
	if dist(w, p)+dist(p, r)+dist(r, w) != weekMinutes {
		return fmt.Errorf("阶段起点顺序应为 wipe_start → pre_selection_start → results_start")
	}
	return nil
}

func (s *WeeklySchedule) boundaries() []boundary {
	return []boundary{
		{mark: s.WipeStart, phase: model.PhaseWipeInProgress},
		{mark: s.PreSelectionStart, phase: model.PhasePreSelection},
		{mark: s.ResultsStart, phase: model.PhaseResults},
	}
}

// PhaseAt 返回 t 所处的阶段：最近一个不晚于 t 的起点所对应的阶段
func (s *WeeklySchedule) PhaseAt(t time.Time) model.Phase {
	var (
		latest time.Time
		phase  = model.DefaultPhase
	)
	for _, b := range s.boundaries() {
		start := b.mark.LastAtOrBefore(t, s.Location)
		if latest.IsZero() || start.After(latest) {
			latest = start
			phase = b.phase
		}
	}
	return phase
}

// NextTransition 返回严格晚于 t 的下一个阶段起点及其阶段
func (s *WeeklySchedule) NextTransition(t time.Time) (time.Time, model.Phase) {
	var (
		next  time.Time
		phase model.Phase
	)
	for _, b := range s.boundaries() {
		at := b.mark.NextAfter(t, s.Location)
		if next.IsZero() || at.Before(next) {
			next = at
			phase = b.phase
		}
	}
	return next, phase
}

// [自证通过] internal/schedule/schedule.go
