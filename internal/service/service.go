package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pcb-assembly-tracking/internal/cache"
	"pcb-assembly-tracking/internal/catalog"
	"pcb-assembly-tracking/internal/client"
	"pcb-assembly-tracking/internal/event"
	"pcb-assembly-tracking/internal/metrics"
	"pcb-assembly-tracking/internal/session"
	"pcb-assembly-tracking/internal/types"
	"pcb-assembly-tracking/internal/util"
	"pcb-assembly-tracking/internal/workorder"
)

// 操作员提示语：远程失败时完工仍然成立，记录已落本地缓存
const msgSavedLocally = "远程工单服务不可用，完工记录已保存到本地，恢复后自动同步"

// CompletionService 装配完工服务：编排开工、扫描、完工、返工的完整流程
// 远程工单服务是协作方而不是依赖方，任何远程失败都不阻塞产线操作
type CompletionService struct {
	catalog  *catalog.Catalog
	registry *session.Registry
	client   *client.Client
	store    *cache.Store
	bus      *event.Bus
	operator string
	logger   *slog.Logger
}

// New 创建完工服务
func New(cat *catalog.Catalog, reg *session.Registry, cli *client.Client,
	store *cache.Store, bus *event.Bus, operator string, logger *slog.Logger) *CompletionService {
	return &CompletionService{
		catalog:  cat,
		registry: reg,
		client:   cli,
		store:    store,
		bus:      bus,
		operator: operator,
		logger:   logger.With("component", "completion_service"),
	}
}

// Registry 暴露会话表给 API 层
func (s *CompletionService) Registry() *session.Registry { return s.registry }

// Store 暴露本地缓存给 API 层和测试
func (s *CompletionService) Store() *cache.Store { return s.store }

// StartSession 开工：创建装配会话并做好远程登记
// 目录查不到类型是硬错误；远程登记、校验码补齐失败都只降级
func (s *CompletionService) StartSession(ctx context.Context, typeCode, workOrderID string) (*session.Session, error) {
	ctx = ensureTrace(ctx)
	logger := s.loggerFor(ctx).With("type_code", typeCode, "work_order_id", workOrderID)

	cfg, err := s.catalog.Lookup(typeCode)
	if err != nil {
		logger.Error("开工失败，装配类型不存在", "error", err)
		return nil, err
	}

	sess := session.New(util.NewSessionID(), cfg)
	sess.WorkOrderID = workOrderID

	// 关联工单：读取产品信息并把工单推进到 In Progress
	if workOrderID != "" {
		if wo, err := s.client.GetWorkOrder(ctx, workOrderID); err != nil {
			logger.Warn("读取工单失败，继续以离线模式开工", "error", err)
		} else {
			sess.Product = wo.Product
			sess.Order = &wo
			if wo.Status == types.StatusPending {
				if err := s.client.UpdateWorkOrder(ctx, workOrderID, map[string]any{
					"status": types.StatusInProgress,
				}); err != nil {
					logger.Warn("更新工单状态失败", "error", err)
				}
			}
		}
	}

	// RSM 校验码来自物料主数据，查询失败时槽位保持免校验
	if cfg.Family == types.FamilyRSM {
		s.enrichVerificationCodes(ctx, sess, cfg, logger)
	}

	// 远程登记装配过程记录，拿到 ID 后续步骤才能回写
	processID, err := s.client.CreateAssemblyProcess(ctx, map[string]any{
		"work_order": workOrderID,
		"item_code":  typeCode,
		"pcb_type":   cfg.Family,
		"status":     "started",
		"started_at": time.Now(),
	})
	if err != nil {
		logger.Warn("登记装配过程失败，完工时跳过远程过程回写", "error", err)
	} else {
		sess.ProcessID = processID
	}

	// 本地先记一笔在制记录，掉电或远程失联都能恢复现场
	pending := types.CompletedAssembly{
		AssemblyID:  sess.ID,
		WorkOrderID: workOrderID,
		TypeCode:    typeCode,
		Family:      cfg.Family,
		Product:     sess.Product,
		SessionID:   sess.ID,
	}
	if sess.Order != nil {
		pending.OrderQuantity = sess.Order.Quantity
		pending.OrderCompleted = sess.Order.CompletedQuantity
	}
	if err := s.store.SavePending(pending); err != nil {
		logger.Error("写入本地在制缓存失败", "error", err)
	}
	_ = s.store.AppendLog("session_started", map[string]any{
		"session_id": sess.ID, "type_code": typeCode, "work_order_id": workOrderID,
	})

	s.registry.Add(sess)
	s.bus.Publish(event.Event{
		Type:        event.SessionStarted,
		SessionID:   sess.ID,
		TypeCode:    typeCode,
		WorkOrderID: workOrderID,
	})
	logger.Info("装配会话已开工", "session_id", sess.ID)
	return sess, nil
}

// enrichVerificationCodes 按元件物料编码从物料主数据补齐校验码
func (s *CompletionService) enrichVerificationCodes(ctx context.Context, sess *session.Session,
	cfg types.AssemblyTypeConfig, logger *slog.Logger) {

	codes := make(map[string]string)
	seen := make(map[string]bool)
	for _, slot := range cfg.Components {
		if seen[slot.ItemCode] {
			continue
		}
		seen[slot.ItemCode] = true
		items, err := s.client.SearchItemMaster(ctx, slot.ItemCode)
		if err != nil {
			logger.Warn("查询元件校验码失败，该物料免校验", "item_code", slot.ItemCode, "error", err)
			continue
		}
		for _, item := range items {
			if item.ItemCode == slot.ItemCode && item.Code != "" {
				codes[slot.ItemCode] = item.Code
				break
			}
		}
	}
	if len(codes) > 0 {
		sess.SetVerificationCodes(codes)
	}
}

// Scan 在指定会话上执行一次扫描，结果同时计入指标和事件总线
func (s *CompletionService) Scan(ctx context.Context, sessionID, barcode string) (session.ScanResult, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return session.ScanResult{}, err
	}

	result, err := sess.Scan(barcode)
	if err != nil {
		metrics.ScansTotal.WithLabelValues(scanResultLabel(err)).Inc()
		s.bus.Publish(event.Event{
			Type:      event.ScanRejected,
			SessionID: sessionID,
			TypeCode:  sess.Config.TypeCode,
			Barcode:   barcode,
			Error:     err,
		})
		return session.ScanResult{}, err
	}

	metrics.ScansTotal.WithLabelValues("accepted").Inc()
	slot := result.Slot
	s.bus.Publish(event.Event{
		Type:      event.ScanAccepted,
		SessionID: sessionID,
		TypeCode:  sess.Config.TypeCode,
		Slot:      &slot,
		Barcode:   barcode,
	})
	if result.Ready {
		s.bus.Publish(event.Event{
			Type:      event.SessionReady,
			SessionID: sessionID,
			TypeCode:  sess.Config.TypeCode,
		})
	}
	return result, nil
}

// scanResultLabel 把扫描错误映射到指标标签
func scanResultLabel(err error) string {
	var dupSlot *session.DuplicateScanError
	var dupBarcode *session.DuplicateBarcodeError
	var mismatch *session.VerificationMismatchError
	switch {
	case errors.As(err, &dupSlot):
		return "duplicate_slot"
	case errors.As(err, &dupBarcode):
		return "duplicate_barcode"
	case errors.As(err, &mismatch):
		return "mismatch"
	}
	return "rejected"
}

// CompleteAssembly 完工流水线
// 闸门检查失败是唯一的硬错误；此后每一步远程失败只降级 PersistedRemotely，
// 本地缓存写入无条件执行，保证产线不因网络问题停线
func (s *CompletionService) CompleteAssembly(ctx context.Context, sessionID string) (types.CompletionResult, error) {
	ctx = ensureTrace(ctx)
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return types.CompletionResult{}, err
	}
	logger := s.loggerFor(ctx).With("session_id", sess.ID, "type_code", sess.Config.TypeCode)

	// 幂等：重复完工直接返回首次结果，不产生第二次副作用
	if cached, ok := sess.CompletionResult(); ok {
		logger.Info("会话已完工，返回缓存结果")
		return cached, nil
	}

	// 双闸门检查：元件、传感器各自扫满
	if err := sess.EnsureReady(); err != nil {
		logger.Warn("完工被拒绝", "error", err)
		return types.CompletionResult{}, err
	}

	persisted := true
	barcode := s.GenerateBarcode(ctx, sess.Config.Family, sess.Config.TypeCode)
	now := time.Now()
	assembly := types.CompletedAssembly{
		AssemblyID:   util.NewAssemblyID(),
		WorkOrderID:  sess.WorkOrderID,
		TypeCode:     sess.Config.TypeCode,
		Family:       sess.Config.Family,
		Product:      sess.Product,
		Barcode:      barcode,
		CompletedAt:  now,
		CompletedBy:  s.operator,
		ScannedParts: sess.ScannedParts(),
		SessionID:    sess.ID,
	}

	// 回写远程装配过程记录，metadata 里带上全部扫描明细
	if sess.ProcessID != "" {
		if err := s.client.UpdateAssemblyProcess(ctx, sess.ProcessID, map[string]any{
			"status":         "completed",
			"barcode_number": barcode,
			"completed_at":   now,
			"metadata": map[string]any{
				"scanned_components": assembly.ScannedParts,
			},
		}); err != nil {
			logger.Warn("回写装配过程失败", "error", err)
			persisted = false
		}
	}

	// 工单结算：本地计算始终执行，远程通知失败只降级
	// 远程读不到工单时退回开工时的快照结算，操作员仍能看到剩余数量
	var outcome *types.WorkOrderOutcome
	if sess.WorkOrderID != "" {
		if wo, err := s.client.GetWorkOrder(ctx, sess.WorkOrderID); err != nil {
			logger.Warn("读取工单失败，按本地快照结算数量", "error", err)
			persisted = false
			if sess.Order != nil {
				o := workorder.ApplyCompletion(*sess.Order, logger)
				outcome = &o
				sess.Order = &o.WorkOrder
			}
		} else {
			sess.Order = &wo
			o := workorder.ApplyCompletion(wo, logger)
			outcome = &o
			if err := s.client.CompleteAssembly(ctx, sess.WorkOrderID, types.CompletionNotice{
				AssemblyBarcode:   barcode,
				ScannedComponents: assembly.ScannedParts,
				CompletedBy:       s.operator,
				StartTime:         sess.StartedAt,
				QualityNotes:      "Completed via operator terminal",
			}); err != nil {
				logger.Warn("通知工单完工失败", "error", err)
				persisted = false
			}
			if err := s.client.UpdateWorkOrder(ctx, sess.WorkOrderID, map[string]any{
				"completed_quantity": o.WorkOrder.CompletedQuantity,
				"status":             o.WorkOrder.Status,
			}); err != nil {
				logger.Warn("更新工单数量失败", "error", err)
				persisted = false
			}
		}
	}

	// 上报扫描明细
	if sess.ProcessID != "" {
		for _, part := range assembly.ScannedParts {
			if err := s.client.AddScannedPart(ctx, sess.ProcessID, part); err != nil {
				logger.Warn("上报扫描明细失败", "sequence", part.Sequence, "error", err)
				persisted = false
				break
			}
		}
	}

	// 本地缓存无条件写入：在制记录移入完工桶
	lookupID := sess.WorkOrderID
	if lookupID == "" {
		lookupID = sess.ID
	}
	moved, err := s.store.MovePendingToCompleted(lookupID, assembly)
	if err != nil {
		logger.Error("写入本地完工缓存失败", "error", err)
	} else if !moved {
		logger.Warn("本地在制记录缺失，完工记录直接入库", "lookup_id", lookupID)
	}
	_ = s.store.AppendLog("assembly_completed", map[string]any{
		"assembly_id": assembly.AssemblyID, "barcode": barcode,
		"work_order_id": sess.WorkOrderID, "persisted_remotely": persisted,
	})

	result := types.CompletionResult{
		Success:           true,
		AssemblyBarcode:   barcode,
		WorkOrderOutcome:  outcome,
		PersistedRemotely: persisted,
	}
	if !persisted {
		result.Message = msgSavedLocally
	}
	if err := sess.MarkCompleted(result); err != nil {
		logger.Warn("会话状态机推进失败", "error", err)
	}

	metrics.AssembliesCompletedTotal.WithLabelValues(string(sess.Config.Family), sess.Config.TypeCode).Inc()
	s.bus.Publish(event.Event{
		Type:        event.AssemblyCompleted,
		SessionID:   sess.ID,
		TypeCode:    sess.Config.TypeCode,
		WorkOrderID: sess.WorkOrderID,
		Assembly:    &assembly,
		Outcome:     outcome,
	})
	if outcome != nil && outcome.IsFullyCompleted {
		s.bus.Publish(event.Event{
			Type:        event.WorkOrderFinished,
			SessionID:   sess.ID,
			TypeCode:    sess.Config.TypeCode,
			WorkOrderID: sess.WorkOrderID,
			Outcome:     outcome,
		})
	}

	logger.Info("装配完工", "assembly_id", assembly.AssemblyID,
		"barcode", barcode, "persisted_remotely", persisted)
	return result, nil
}

// AbandonSession 放弃会话：从会话表移除，不产生任何远程副作用
// 开工时写入的在制缓存记录一并清理，避免废弃会话堆积
func (s *CompletionService) AbandonSession(sessionID string) error {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return err
	}
	sess.Abandon()
	s.registry.Remove(sessionID)
	if _, err := s.store.RemovePending(sessionID); err != nil {
		s.logger.Warn("清理在制缓存失败", "session_id", sessionID, "error", err)
	}
	_ = s.store.AppendLog("session_abandoned", map[string]any{"session_id": sessionID})
	s.logger.Info("装配会话已放弃", "session_id", sessionID)
	return nil
}

// loggerFor 给日志附加 trace_id
func (s *CompletionService) loggerFor(ctx context.Context) *slog.Logger {
	if traceID, ok := util.TraceIDFromContext(ctx); ok {
		return s.logger.With("trace_id", traceID)
	}
	return s.logger
}

// ensureTrace 保证 ctx 里有 trace_id，API 层没给就现生成
func ensureTrace(ctx context.Context) context.Context {
	if _, ok := util.TraceIDFromContext(ctx); ok {
		return ctx
	}
	return util.ContextWithTraceID(ctx, util.NewTraceID())
}
