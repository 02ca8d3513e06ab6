package fsm

import "testing"

func TestLifecycle(t *testing.T) {
	f := NewFSM("sess-1")
	if !f.Is(StateInProgress) {
		t.Fatalf("初始状态 = %s, 期望 IN_PROGRESS", f.CurrentState())
	}

	if err := f.Trigger(EventSlotsFilled); err != nil {
		t.Fatalf("触发 SLOTS_FILLED 失败: %v", err)
	}
	if err := f.Trigger(EventComplete); err != nil {
		t.Fatalf("触发 COMPLETE 失败: %v", err)
	}
	if !f.Is(StateCompleted) {
		t.Fatalf("最终状态 = %s, 期望 COMPLETED", f.CurrentState())
	}
}

// TestIllegalTransition 非法转移报错且状态不变
func TestIllegalTransition(t *testing.T) {
	f := NewFSM("sess-1")
	if err := f.Trigger(EventComplete); err == nil {
		t.Fatal("进行中状态不应允许直接完工")
	}
	if !f.Is(StateInProgress) {
		t.Fatalf("非法转移后状态被改变: %s", f.CurrentState())
	}
}

func TestCallbacks(t *testing.T) {
	f := NewFSM("sess-1")
	var gotID string
	f.On(StateReadyToComplete, func(sessionID string) { gotID = sessionID })

	if err := f.Trigger(EventSlotsFilled); err != nil {
		t.Fatalf("触发失败: %v", err)
	}
	if gotID != "sess-1" {
		t.Errorf("回调收到的会话 ID = %q, 期望 sess-1", gotID)
	}
}

func TestAbandon(t *testing.T) {
	f := NewFSM("sess-1")
	_ = f.Trigger(EventSlotsFilled)
	if err := f.Trigger(EventAbandon); err != nil {
		t.Fatalf("就绪状态应允许放弃: %v", err)
	}
	if !f.Is(StateAbandoned) {
		t.Fatalf("状态 = %s, 期望 ABANDONED", f.CurrentState())
	}
}
