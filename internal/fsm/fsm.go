package fsm

import (
	"fmt"
	"sync"
)

// State 定义状态类型
type State string

// Event 定义事件类型
type Event string

const (
	StateInProgress      State = "IN_PROGRESS"       // 扫描进行中
	StateReadyToComplete State = "READY_TO_COMPLETE" // 全部槽位已扫满，等待完工确认
	StateCompleted       State = "COMPLETED"         // 已完工
	StateAbandoned       State = "ABANDONED"         // 会话已放弃
)

const (
	EventSlotsFilled Event = "SLOTS_FILLED"
	EventComplete    Event = "COMPLETE"
	EventAbandon     Event = "ABANDON"
)

// FSM 装配会话状态机
type FSM struct {
	Current State
	mu      sync.Mutex
	// transitions 定义状态转移表: CurrentState -> Event -> NextState
	transitions map[State]map[Event]State
	// callbacks 定义状态变更后的回调: State -> func()
	callbacks map[State]func(sessionID string)
	SessionID string // 关联的装配会话ID
}

func NewFSM(sessionID string) *FSM {
	fsm := &FSM{
		Current:     StateInProgress,
		SessionID:   sessionID,
		transitions: make(map[State]map[Event]State),
		callbacks:   make(map[State]func(string)),
	}
	fsm.initTransitions()
	return fsm
}

func (f *FSM) initTransitions() {
	f.addTransition(StateInProgress, EventSlotsFilled, StateReadyToComplete)
	f.addTransition(StateReadyToComplete, EventComplete, StateCompleted)
	f.addTransition(StateInProgress, EventAbandon, StateAbandoned)
	f.addTransition(StateReadyToComplete, EventAbandon, StateAbandoned)
}

func (f *FSM) addTransition(from State, event Event, to State) {
	if f.transitions[from] == nil {
		f.transitions[from] = make(map[Event]State)
	}
	f.transitions[from][event] = to
}

// On 注册进入某状态后的回调
func (f *FSM) On(state State, cb func(sessionID string)) {
	f.callbacks[state] = cb
}

// Trigger 触发事件，非法转移返回错误且状态不变
func (f *FSM) Trigger(event Event) error {
	f.mu.Lock()
	next, ok := f.transitions[f.Current][event]
	if !ok {
		current := f.Current
		f.mu.Unlock()
		return fmt.Errorf("非法状态转移: %s 状态下不允许事件 %s", current, event)
	}
	f.Current = next
	cb := f.callbacks[next]
	f.mu.Unlock()

	if cb != nil {
		cb(f.SessionID)
	}
	return nil
}

// Is 判断当前是否处于指定状态
func (f *FSM) Is(state State) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Current == state
}

// CurrentState 读取当前状态
func (f *FSM) CurrentState() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Current
}
