// Package workorder 实现工单数量结算的纯函数逻辑
// 不做任何 IO，远程更新和本地缓存由 service 层负责
package workorder

import (
	"log/slog"

	"pcb-assembly-tracking/internal/types"
)

// ApplyCompletion 对工单记一台完工，返回更新后的结算结果
// 完成数量只增不减；达到计划数量后继续完工会被钳制并告警，
// 产线多扫不应该把数量推过计划值
func ApplyCompletion(wo types.WorkOrder, logger *slog.Logger) types.WorkOrderOutcome {
	updated := wo
	if updated.CompletedQuantity < updated.Quantity {
		updated.CompletedQuantity++
	} else {
		logger.Warn("工单完成数量已达计划值，忽略超额完工",
			"work_order_id", wo.ID, "quantity", wo.Quantity, "completed", wo.CompletedQuantity)
		updated.CompletedQuantity = updated.Quantity
	}

	if updated.CompletedQuantity >= updated.Quantity {
		updated.Status = types.StatusCompleted
	} else {
		updated.Status = types.StatusInProgress
	}

	return types.WorkOrderOutcome{
		WorkOrder:        updated,
		IsFullyCompleted: updated.Status == types.StatusCompleted,
		Remaining:        Remaining(updated),
	}
}

// Remaining 计算工单剩余数量，不会出现负数
func Remaining(wo types.WorkOrder) int {
	if r := wo.Quantity - wo.CompletedQuantity; r > 0 {
		return r
	}
	return 0
}
