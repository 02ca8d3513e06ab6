package event

import (
	"sync"

	"pcb-assembly-tracking/internal/types"
)

// EventType 定义事件的类型
type EventType string

// 定义所有业务事件类型
const (
	SessionStarted    EventType = "SessionStarted"    // 装配会话开工
	ScanAccepted      EventType = "ScanAccepted"      // 扫描通过
	ScanRejected      EventType = "ScanRejected"      // 扫描被拒绝
	SessionReady      EventType = "SessionReady"      // 全部槽位扫满，可完工
	AssemblyCompleted EventType = "AssemblyCompleted" // 装配完工
	WorkOrderFinished EventType = "WorkOrderFinished" // 工单全部数量完成
	ReworkQueued      EventType = "ReworkQueued"      // 返工已登记
)

// Event 结构体定义了事件的数据负载
type Event struct {
	Type        EventType                // 事件类型
	SessionID   string                   // 关联的装配会话 ID
	TypeCode    string                   // 装配类型编码
	WorkOrderID string                   // 关联的工单 ID (可能为空)
	Slot        *types.Slot              // 关联的槽位 (仅扫描事件)
	Barcode     string                   // 扫描的条码 (仅扫描事件)
	Assembly    *types.CompletedAssembly // 完工记录 (仅完工/返工事件)
	Outcome     *types.WorkOrderOutcome  // 工单数量结算 (仅完工事件)
	Error       error                    // 错误信息 (仅拒绝事件)
}

// Handler 是事件处理函数的签名
type Handler func(e Event)

// Bus 是一个简单的内存事件总线
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler // 存储事件类型到多个处理函数的映射
}

// NewBus 创建一个新的事件总线实例
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe 订阅一个特定类型的事件
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish 发布一个事件，所有订阅了该事件类型的处理器都将被调用
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if handlers, ok := b.handlers[e.Type]; ok {
		// 遍历所有处理器并异步执行
		// 使用 goroutine 避免单个处理器的阻塞影响其他处理器
		for _, handler := range handlers {
			go handler(e)
		}
	}
}
