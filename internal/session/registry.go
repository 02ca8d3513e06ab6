package session

import (
	"sync"

	"pcb-assembly-tracking/internal/metrics"
)

// Registry 在制会话表，按会话 ID 索引
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry 创建空的会话表
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add 登记一个新会话
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
}

// Get 按 ID 查找会话
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, &NotFoundError{SessionID: id}
	}
	return s, nil
}

// Remove 移除会话（完工或放弃后调用）
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
}

// Snapshots 导出全部在制会话的只读视图
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Snapshot())
	}
	return out
}
