package handlers

import (
	"log/slog"

	"pcb-assembly-tracking/internal/event"
	"pcb-assembly-tracking/internal/session"
	"pcb-assembly-tracking/internal/web"
)

// RegisterEventHandlers 将所有事件处理器注册到事件总线
// 这是事件驱动架构的核心，将不同的业务关注点（UI、日志、告警）解耦
func RegisterEventHandlers(bus *event.Bus, st *web.StateTracker, reg *session.Registry,
	alerts *AlertEvaluator, logger *slog.Logger) {

	// --- Web UI 处理器 (Web UI Handler) ---
	// 会话状态变化时把最新快照推给前端
	refresh := func(e event.Event) {
		if sess, err := reg.Get(e.SessionID); err == nil {
			st.UpdateSession(sess.Snapshot())
		}
	}
	bus.Subscribe(event.SessionStarted, refresh)
	bus.Subscribe(event.ScanAccepted, refresh)
	bus.Subscribe(event.SessionReady, refresh)
	bus.Subscribe(event.AssemblyCompleted, refresh)

	// --- 告警处理器 (Alert Handler) ---
	// 每次完工对工单结算结果跑一遍告警规则，命中的提示推给操作员
	bus.Subscribe(event.AssemblyCompleted, func(e event.Event) {
		if e.Outcome == nil {
			return
		}
		for _, notice := range alerts.Evaluate(*e.Outcome) {
			logger.Warn("完工告警规则命中", "session_id", e.SessionID, "notice", notice)
			st.AddNotice(notice)
		}
	})

	// --- 日志处理器 (Logging Handler) ---
	// 订阅关键业务事件，记录审计日志
	bus.Subscribe(event.ScanRejected, func(e event.Event) {
		logger.Warn("扫描被拒绝", "session_id", e.SessionID, "barcode", e.Barcode, "error", e.Error)
	})
	bus.Subscribe(event.SessionReady, func(e event.Event) {
		logger.Info("槽位已扫满，等待完工确认", "session_id", e.SessionID, "type_code", e.TypeCode)
	})
	bus.Subscribe(event.AssemblyCompleted, func(e event.Event) {
		logger.Info("装配完工", "session_id", e.SessionID,
			"assembly_id", e.Assembly.AssemblyID, "barcode", e.Assembly.Barcode)
	})
	bus.Subscribe(event.WorkOrderFinished, func(e event.Event) {
		logger.Info("工单全部数量完成", "work_order_id", e.WorkOrderID)
		st.AddNotice("工单 " + e.WorkOrderID + " 已全部完成")
	})
	bus.Subscribe(event.ReworkQueued, func(e event.Event) {
		logger.Warn("装配退回返工", "assembly_id", e.Assembly.AssemblyID,
			"reason", e.Assembly.ReworkReason, "rework_count", e.Assembly.ReworkCount)
	})
}
