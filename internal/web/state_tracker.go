package web

import (
	"sync"

	"pcb-assembly-tracking/internal/session"
)

// GlobalState 代表操作台的实时状态快照
// Sessions 按会话 ID 索引在制会话；Notices 保留最近的告警提示
type GlobalState struct {
	Sessions map[string]session.Snapshot `json:"sessions"`
	Notices  []string                    `json:"notices,omitempty"`
}

// maxNotices 告警提示只保留最近几条，避免快照无限增长
const maxNotices = 20

// StateTracker 负责追踪所有在制会话的实时状态，并通知前端更新
type StateTracker struct {
	mu    sync.RWMutex
	state GlobalState
	hub   *Hub
}

// NewStateTracker 创建一个新的 StateTracker 实例
func NewStateTracker(hub *Hub) *StateTracker {
	return &StateTracker{
		state: GlobalState{Sessions: make(map[string]session.Snapshot)},
		hub:   hub,
	}
}

// UpdateSession 刷新单个会话的快照，并向所有客户端广播最新的全局状态
func (st *StateTracker) UpdateSession(snap session.Snapshot) {
	st.mu.Lock()
	st.state.Sessions[snap.ID] = snap
	st.mu.Unlock()

	st.hub.BroadcastState(st.GetStateSnapshot())
}

// RemoveSession 会话完工或放弃后从快照中移除，并广播
func (st *StateTracker) RemoveSession(id string) {
	st.mu.Lock()
	delete(st.state.Sessions, id)
	st.mu.Unlock()

	st.hub.BroadcastState(st.GetStateSnapshot())
}

// AddNotice 追加一条操作员提示（告警规则命中、远程降级等），并广播
func (st *StateTracker) AddNotice(msg string) {
	st.mu.Lock()
	st.state.Notices = append(st.state.Notices, msg)
	if len(st.state.Notices) > maxNotices {
		st.state.Notices = st.state.Notices[len(st.state.Notices)-maxNotices:]
	}
	st.mu.Unlock()

	st.hub.BroadcastState(st.GetStateSnapshot())
}

// GetStateSnapshot 返回当前全局状态的一个深拷贝副本
// 用于新客户端连接时获取一次全量数据
func (st *StateTracker) GetStateSnapshot() GlobalState {
	st.mu.RLock()
	defer st.mu.RUnlock()

	newState := GlobalState{
		Sessions: make(map[string]session.Snapshot, len(st.state.Sessions)),
		Notices:  append([]string(nil), st.state.Notices...),
	}
	for id, snap := range st.state.Sessions {
		newState.Sessions[id] = snap
	}
	return newState
}
