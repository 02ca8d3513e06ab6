package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pcb-assembly-tracking/internal/types"
)

// 缓存桶文件名，对应远程服务不可用时的本地降级存储
const (
	bucketPending   = "pendingWorkOrders"
	bucketCompleted = "completedAssemblies"
	bucketLogs      = "assemblyLogs"
)

// 历史版本使用过的完工桶名，加载时兼容导入
var legacyCompletedBuckets = []string{"assemblyCompletedOrders", "completedWorkOrders"}

// Caps 定义各缓存桶的容量上限，超限时最旧记录先被淘汰
type Caps struct {
	Pending   int
	Completed int
	Logs      int
}

// DefaultCaps 默认容量
var DefaultCaps = Caps{Pending: 100, Completed: 100, Logs: 1000}

// LogEntry 操作日志缓存中的一条记录
type LogEntry struct {
	Time    time.Time      `json:"time"`
	Action  string         `json:"action"`
	Details map[string]any `json:"details,omitempty"`
}

// Store 本地降级缓存：按桶存放 JSON 文件，写入落盘立即生效
// 远程工单服务不可用时，完工记录先进这里，后续再同步
type Store struct {
	dir    string
	caps   Caps
	logger *slog.Logger

	mu        sync.Mutex
	pending   []types.CompletedAssembly
	completed []types.CompletedAssembly
	logs      []LogEntry
}

// NewStore 打开缓存目录并加载已有数据
func NewStore(dir string, caps Caps, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建缓存目录失败: %w", err)
	}
	if caps.Pending <= 0 {
		caps.Pending = DefaultCaps.Pending
	}
	if caps.Completed <= 0 {
		caps.Completed = DefaultCaps.Completed
	}
	if caps.Logs <= 0 {
		caps.Logs = DefaultCaps.Logs
	}

	s := &Store{dir: dir, caps: caps, logger: logger}
	if err := loadBucket(s.path(bucketPending), &s.pending); err != nil {
		return nil, err
	}
	if err := loadBucket(s.path(bucketCompleted), &s.completed); err != nil {
		return nil, err
	}
	// 完工桶为空时尝试导入历史桶名的数据
	if len(s.completed) == 0 {
		for _, name := range legacyCompletedBuckets {
			var legacy []types.CompletedAssembly
			if err := loadBucket(s.path(name), &legacy); err == nil && len(legacy) > 0 {
				s.logger.Info("导入历史缓存桶", "bucket", name, "count", len(legacy))
				s.completed = append(s.completed, legacy...)
			}
		}
	}
	if err := loadBucket(s.path(bucketLogs), &s.logs); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) path(bucket string) string {
	return filepath.Join(s.dir, bucket+".json")
}

func loadBucket(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("读取缓存文件失败 %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		// 损坏的缓存文件不应阻止启动，丢弃并告警
		slog.Warn("缓存文件损坏，已忽略", "path", path, "error", err)
	}
	return nil
}

// flushBucket 整桶覆盖写入，最后写入者生效
func (s *Store) flushBucket(bucket string, data any) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(bucket), raw, 0644); err != nil {
		return fmt.Errorf("写入缓存文件失败 %s: %w", bucket, err)
	}
	return nil
}

// SavePending 保存一条待同步的装配记录（同 AssemblyID 覆盖）
func (s *Store) SavePending(a types.CompletedAssembly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = upsert(s.pending, a)
	s.pending = evictOldest(s.pending, s.caps.Pending, s.logger, bucketPending)
	return s.flushBucket(bucketPending, s.pending)
}

// SaveCompleted 保存一条完工记录（同 AssemblyID 覆盖）
func (s *Store) SaveCompleted(a types.CompletedAssembly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = upsert(s.completed, a)
	s.completed = evictOldest(s.completed, s.caps.Completed, s.logger, bucketCompleted)
	return s.flushBucket(bucketCompleted, s.completed)
}

// Pending 返回待同步记录的副本
func (s *Store) Pending() []types.CompletedAssembly {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.CompletedAssembly(nil), s.pending...)
}

// Completed 返回完工记录的副本
func (s *Store) Completed() []types.CompletedAssembly {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.CompletedAssembly(nil), s.completed...)
}

// RemovePending 按装配 ID 删除一条待同步记录（会话被放弃时调用）
// 记录不存在不算错误，返回 false
func (s *Store) RemovePending(assemblyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range s.pending {
		if a.AssemblyID == assemblyID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true, s.flushBucket(bucketPending, s.pending)
		}
	}
	return false, nil
}

// MovePendingToCompleted 把待同步记录按装配 ID 或工单 ID 移入完工桶
// 找不到对应记录不算错误，返回 false 由调用方决定是否告警
func (s *Store) MovePendingToCompleted(id string, final types.CompletedAssembly) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, a := range s.pending {
		if a.AssemblyID == id || (a.WorkOrderID != "" && a.WorkOrderID == id) {
			idx = i
			break
		}
	}
	if idx >= 0 {
		s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
		if err := s.flushBucket(bucketPending, s.pending); err != nil {
			return true, err
		}
	}
	s.completed = upsert(s.completed, final)
	s.completed = evictOldest(s.completed, s.caps.Completed, s.logger, bucketCompleted)
	return idx >= 0, s.flushBucket(bucketCompleted, s.completed)
}

// TakeCompleted 按装配 ID 取出并移除一条完工记录（返工时使用）
func (s *Store) TakeCompleted(assemblyID string) (types.CompletedAssembly, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range s.completed {
		if a.AssemblyID == assemblyID {
			s.completed = append(s.completed[:i], s.completed[i+1:]...)
			return a, true, s.flushBucket(bucketCompleted, s.completed)
		}
	}
	return types.CompletedAssembly{}, false, nil
}

// AppendLog 追加一条操作日志
func (s *Store) AppendLog(action string, details map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs = append(s.logs, LogEntry{Time: time.Now(), Action: action, Details: details})
	if len(s.logs) > s.caps.Logs {
		s.logs = s.logs[len(s.logs)-s.caps.Logs:]
	}
	return s.flushBucket(bucketLogs, s.logs)
}

// Logs 返回操作日志的副本
func (s *Store) Logs() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogEntry(nil), s.logs...)
}

// upsert 按 AssemblyID 覆盖或追加
func upsert(list []types.CompletedAssembly, a types.CompletedAssembly) []types.CompletedAssembly {
	for i, old := range list {
		if old.AssemblyID == a.AssemblyID {
			list[i] = a
			return list
		}
	}
	return append(list, a)
}

// evictOldest 超出容量时淘汰最旧的记录
func evictOldest(list []types.CompletedAssembly, limit int, logger *slog.Logger, bucket string) []types.CompletedAssembly {
	if len(list) <= limit {
		return list
	}
	dropped := len(list) - limit
	logger.Warn("缓存桶超限，淘汰最旧记录", "bucket", bucket, "dropped", dropped)
	return append([]types.CompletedAssembly(nil), list[dropped:]...)
}
