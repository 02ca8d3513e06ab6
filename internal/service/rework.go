package service

import (
	"context"
	"errors"

	"pcb-assembly-tracking/internal/client"
	"pcb-assembly-tracking/internal/event"
	"pcb-assembly-tracking/internal/metrics"
	"pcb-assembly-tracking/internal/types"
)

// HandleRework 把一台完工装配退回返工
// 本地记录移回在制桶并累加返工次数；远程登记尽力而为，
// 远程工单已不存在时退化为新建工单，再不行只留本地记录
func (s *CompletionService) HandleRework(ctx context.Context, assemblyID, reason string) (types.CompletedAssembly, error) {
	ctx = ensureTrace(ctx)
	logger := s.loggerFor(ctx).With("assembly_id", assemblyID)

	assembly, found, err := s.store.TakeCompleted(assemblyID)
	if err != nil {
		return types.CompletedAssembly{}, err
	}
	if !found {
		// 本地没有这条完工记录不算失败，返工登记照常进行
		logger.Warn("本地完工记录缺失，按空白记录登记返工")
		assembly = types.CompletedAssembly{AssemblyID: assemblyID}
	}

	assembly.IsRework = true
	assembly.Reworked = true
	assembly.ReworkReason = reason
	assembly.ReworkCount++
	if err := s.store.SavePending(assembly); err != nil {
		logger.Error("写入本地在制缓存失败", "error", err)
	}

	// 远程登记返工，请求体字段与工单服务的约定一致
	if assembly.WorkOrderID != "" {
		req := types.ReworkRequest{
			Quantity:   1,
			Notes:      reason,
			ReleasedBy: s.operator,
		}
		if err := s.client.CreateRework(ctx, assembly.WorkOrderID, req); err != nil {
			if errors.Is(err, client.ErrNotFound) {
				// 原工单已被清理，补建一条返工工单
				logger.Warn("原工单不存在，新建返工工单")
				rework := types.WorkOrder{
					ID:              assembly.WorkOrderID + "-RW",
					ItemCode:        assembly.TypeCode,
					Product:         assembly.Product,
					PCBType:         string(assembly.Family),
					Quantity:        1,
					Status:          types.StatusPending,
					IsRework:        true,
					ReworkReference: assembly.WorkOrderID,
				}
				if err := s.client.CreateWorkOrder(ctx, rework); err != nil {
					logger.Warn("新建返工工单失败，仅保留本地记录", "error", err)
				}
			} else {
				logger.Warn("远程登记返工失败，仅保留本地记录", "error", err)
			}
		}
	}

	_ = s.store.AppendLog("rework_queued", map[string]any{
		"assembly_id": assemblyID, "reason": reason, "rework_count": assembly.ReworkCount,
	})
	metrics.ReworksTotal.Inc()
	s.bus.Publish(event.Event{
		Type:        event.ReworkQueued,
		SessionID:   assembly.SessionID,
		TypeCode:    assembly.TypeCode,
		WorkOrderID: assembly.WorkOrderID,
		Assembly:    &assembly,
	})

	logger.Info("返工已登记", "reason", reason, "rework_count", assembly.ReworkCount)
	return assembly, nil
}
