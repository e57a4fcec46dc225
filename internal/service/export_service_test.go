package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
)

// ── ExportCycle 测试 ──

func TestExportService_ExportCycle_NoCycle(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.svc.Export.ExportCycle(context.Background())
	if !errors.Is(err, ErrCycleNotFound) {
		t.Errorf("期望 ErrCycleNotFound，实际: %v", err)
	}
}

func TestExportService_ExportCycle_NotCommitted(t *testing.T) {
	env := newTestEnv(t)
	env.activeCycle(t, nil)

	_, _, err := env.svc.Export.ExportCycle(context.Background())
	if !errors.Is(err, ErrNoCommittedSelection) {
		t.Errorf("期望 ErrNoCommittedSelection，实际: %v", err)
	}
}

func TestExportService_ExportCycle_Success(t *testing.T) {
	env := newTestEnv(t)
	sel := committedSelection()
	sel.Selected[0].DisplayName = "张三"
	sel.Selected[0].Score = 107
	env.activeCycle(t, sel)

	buf, filename, err := env.svc.Export.ExportCycle(context.Background())
	if err != nil {
		t.Fatalf("ExportCycle 失败: %v", err)
	}
	if filename != "wipe_roster_20260309.xlsx" {
		t.Errorf("文件名不正确: %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("解析 Excel 失败: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("名单")
	if err != nil {
		t.Fatalf("读取名单 Sheet 失败: %v", err)
	}
	// 标题 + 表头 + 4 个席位
	if len(rows) != 6 {
		t.Fatalf("期望 6 行，实际 %d", len(rows))
	}
	if rows[2][1] != "c0" || rows[2][2] != "张三" || rows[2][3] != "locked" || rows[2][4] != "107" {
		t.Errorf("第一席数据不正确: %v", rows[2])
	}

	backups, _ := f.GetRows("候补")
	if len(backups) != 4 {
		t.Errorf("候补 Sheet 期望 4 行，实际 %d", len(backups))
	}
	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
		t.Error("默认 Sheet1 应已删除")
	}
}

// ── ExportCalendar 测试 ──

func parseCalendar(t *testing.T, raw string) []*ics.VEvent {
	t.Helper()
	cal, err := ics.ParseCalendar(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("解析日历失败: %v", err)
	}
	return cal.Events()
}

func summaryOf(ev *ics.VEvent) string {
	if p := ev.GetProperty(ics.ComponentPropertySummary); p != nil {
		return p.Value
	}
	return ""
}

func TestExportService_ExportCalendar_NoCycle(t *testing.T) {
	env := newTestEnv(t)

	buf, filename, err := env.svc.Export.ExportCalendar(context.Background(), testNow, 2)
	if err != nil {
		t.Fatalf("无周期时也应能导出: %v", err)
	}
	if filename != "wipe_schedule_20260309.ics" {
		t.Errorf("文件名不正确: %s", filename)
	}

	events := parseCalendar(t, buf.String())
	if len(events) != 6 {
		t.Fatalf("2 周期望 6 个事件，实际 %d", len(events))
	}

	// testNow 处于 results 时间窗，下一个时间窗为周五 19:00 的 wipe
	first := events[0]
	if summaryOf(first) != "Wipe in progress" {
		t.Errorf("首个事件应为 wipe，实际 %q", summaryOf(first))
	}
	start, err := first.GetStartAt()
	if err != nil {
		t.Fatalf("读取开始时间失败: %v", err)
	}
	if want := nyTime(2026, time.March, 13, 19, 0); !start.Equal(want) {
		t.Errorf("首个事件开始时间期望 %s，实际 %s", want, start)
	}
	if first.GetProperty(ics.ComponentPropertyDescription) != nil {
		t.Error("无已提交名单时 wipe 事件不应带描述")
	}

	wantOrder := []string{"Wipe in progress", "Pre-selection", "Results"}
	for i, ev := range events {
		if got := summaryOf(ev); got != wantOrder[i%3] {
			t.Errorf("事件 %d 期望 %q，实际 %q", i, wantOrder[i%3], got)
		}
	}
}

func TestExportService_ExportCalendar_WithRoster(t *testing.T) {
	env := newTestEnv(t)
	env.activeCycle(t, committedSelection())

	buf, _, err := env.svc.Export.ExportCalendar(context.Background(), testNow, 1)
	if err != nil {
		t.Fatalf("ExportCalendar 失败: %v", err)
	}

	events := parseCalendar(t, buf.String())
	if len(events) != 3 {
		t.Fatalf("1 周期望 3 个事件，实际 %d", len(events))
	}
	desc := events[0].GetProperty(ics.ComponentPropertyDescription)
	if desc == nil {
		t.Fatal("wipe 事件应附带名单描述")
	}
	if !strings.Contains(desc.Value, "c0") || !strings.Contains(desc.Value, "c4") {
		t.Errorf("描述应包含入选与候补成员: %q", desc.Value)
	}
}

func TestExportService_ExportCalendar_WeeksOutOfRange(t *testing.T) {
	env := newTestEnv(t)

	for _, weeks := range []int{0, -1, 13} {
		buf, _, err := env.svc.Export.ExportCalendar(context.Background(), testNow, weeks)
		if err != nil {
			t.Fatalf("weeks=%d 导出失败: %v", weeks, err)
		}
		if n := len(parseCalendar(t, buf.String())); n != 12 {
			t.Errorf("weeks=%d 应回落为 4 周共 12 个事件，实际 %d", weeks, n)
		}
	}
}
