// Package metrics 轮换流程的 Prometheus 指标。
// 所有方法对 nil 接收者安全，未启用指标时可直接传 nil。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 业务指标
type Metrics struct {
	stateTransitions *prometheus.CounterVec
	approvals        *prometheus.CounterVec
	selectionRuns    *prometheus.CounterVec
	selectionTies    prometheus.Counter
	pendingSelection prometheus.Gauge
	jobRuns          *prometheus.CounterVec
}

// New 在给定 registerer 上注册指标
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wipe_state_transitions_total",
			Help: "阶段切换次数",
		}, []string{"phase", "trigger"}),
		approvals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wipe_approvals_total",
			Help: "审批结果次数",
		}, []string{"outcome"}),
		selectionRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wipe_selection_runs_total",
			Help: "选人执行次数",
		}, []string{"result"}),
		selectionTies: factory.NewCounter(prometheus.CounterOpts{
			Name: "wipe_selection_ties_total",
			Help: "产生边界平分的选人次数",
		}),
		pendingSelection: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wipe_pending_selection",
			Help: "是否存在待审批名单（0/1）",
		}),
		jobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wipe_scheduler_jobs_total",
			Help: "定时任务执行次数",
		}, []string{"job", "result"}),
	}
}

// StateTransition 记录阶段切换，trigger 为 manual | automatic
func (m *Metrics) StateTransition(phase string, automatic bool) {
	if m == nil {
		return
	}
	trigger := "manual"
	if automatic {
		trigger = "automatic"
	}
	m.stateTransitions.WithLabelValues(phase, trigger).Inc()
}

// Approval 记录审批结果：approved | auto_approved | regenerated | edited | cancelled | conflict
func (m *Metrics) Approval(outcome string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(outcome).Inc()
}

// SelectionRun 记录一次选人
func (m *Metrics) SelectionRun(err error, tied bool) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.selectionRuns.WithLabelValues(result).Inc()
	if err == nil && tied {
		m.selectionTies.Inc()
	}
}

// SetPending 更新待审批名单指示
func (m *Metrics) SetPending(pending bool) {
	if m == nil {
		return
	}
	if pending {
		m.pendingSelection.Set(1)
	} else {
		m.pendingSelection.Set(0)
	}
}

// JobRun 记录定时任务执行结果
func (m *Metrics) JobRun(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
}
