package workorder

import (
	"io"
	"log/slog"
	"testing"

	"pcb-assembly-tracking/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestApplyCompletionIncrements(t *testing.T) {
	wo := types.WorkOrder{ID: "WO-1", Quantity: 5, CompletedQuantity: 2}
	outcome := ApplyCompletion(wo, testLogger())

	if outcome.WorkOrder.CompletedQuantity != 3 {
		t.Errorf("完成数量 = %d, 期望 3", outcome.WorkOrder.CompletedQuantity)
	}
	if outcome.WorkOrder.Status != types.StatusInProgress {
		t.Errorf("状态 = %s, 期望 In Progress", outcome.WorkOrder.Status)
	}
	if outcome.IsFullyCompleted {
		t.Error("未完成的工单不应标记为全部完成")
	}
	if outcome.Remaining != 2 {
		t.Errorf("剩余数量 = %d, 期望 2", outcome.Remaining)
	}
}

func TestApplyCompletionFinishesOrder(t *testing.T) {
	wo := types.WorkOrder{ID: "WO-1", Quantity: 3, CompletedQuantity: 2}
	outcome := ApplyCompletion(wo, testLogger())

	if !outcome.IsFullyCompleted {
		t.Error("最后一台完工后应标记为全部完成")
	}
	if outcome.WorkOrder.Status != types.StatusCompleted {
		t.Errorf("状态 = %s, 期望 Completed", outcome.WorkOrder.Status)
	}
	if outcome.Remaining != 0 {
		t.Errorf("剩余数量 = %d, 期望 0", outcome.Remaining)
	}
}

// TestApplyCompletionClamps 超额完工被钳制在计划数量
func TestApplyCompletionClamps(t *testing.T) {
	wo := types.WorkOrder{ID: "WO-1", Quantity: 3, CompletedQuantity: 3}
	outcome := ApplyCompletion(wo, testLogger())

	if outcome.WorkOrder.CompletedQuantity != 3 {
		t.Errorf("完成数量 = %d, 不应超过计划值 3", outcome.WorkOrder.CompletedQuantity)
	}
	if outcome.Remaining != 0 {
		t.Errorf("剩余数量 = %d, 期望 0", outcome.Remaining)
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	wo := types.WorkOrder{Quantity: 2, CompletedQuantity: 5}
	if r := Remaining(wo); r != 0 {
		t.Errorf("剩余数量 = %d, 不应为负", r)
	}
}
