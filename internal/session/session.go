package session

import (
	"sync"
	"time"

	"pcb-assembly-tracking/internal/fsm"
	"pcb-assembly-tracking/internal/types"
	"pcb-assembly-tracking/internal/verify"
)

// Session 一次装配会话：跟踪一台装配从第一次扫描到完工的全过程
// 槽位来自目录配置的副本，扫描结果只写在会话里，目录保持只读
type Session struct {
	ID          string
	Config      types.AssemblyTypeConfig
	WorkOrderID string
	Product     string
	ProcessID   string           // 远程装配过程记录 ID，登记失败时为空
	Order       *types.WorkOrder // 最近一次成功读取的工单快照，远程中断时据此结算数量
	StartedAt   time.Time

	mu           sync.Mutex
	components   []types.Slot
	sensors      []types.Slot
	usedBarcodes map[string]bool
	machine      *fsm.FSM
	result       *types.CompletionResult // 完工结果缓存，重复完工直接返回
}

// ScanResult 一次成功扫描的反馈
type ScanResult struct {
	Slot  types.Slot // 扫描后的槽位快照
	Ready bool       // 本次扫描后是否满足完工条件
}

// Snapshot 会话的只读视图，用于 API 响应和 websocket 推送
type Snapshot struct {
	ID                 string       `json:"id"`
	TypeCode           string       `json:"type_code"`
	Family             types.Family `json:"family"`
	Name               string       `json:"name"`
	Subtitle           string       `json:"subtitle"`
	WorkOrderID        string       `json:"work_order_id,omitempty"`
	Product            string       `json:"product,omitempty"`
	State              string       `json:"state"`
	ScannedComponents  int          `json:"scanned_components"`
	RequiredComponents int          `json:"required_components"`
	ScannedSensors     int          `json:"scanned_sensors"`
	RequiredSensors    int          `json:"required_sensors"`
	Components         []types.Slot `json:"components"`
	Sensors            []types.Slot `json:"sensors"`
	StartedAt          time.Time    `json:"started_at"`
}

// New 基于装配配置创建会话，槽位模板深拷贝进会话
func New(id string, cfg types.AssemblyTypeConfig) *Session {
	return &Session{
		ID:           id,
		Config:       cfg,
		StartedAt:    time.Now(),
		components:   append([]types.Slot(nil), cfg.Components...),
		sensors:      append([]types.Slot(nil), cfg.Sensors...),
		usedBarcodes: make(map[string]bool),
		machine:      fsm.NewFSM(id),
	}
}

// SetVerificationCodes 按物料编码批量补齐槽位校验码
// RSM 系列的校验码来自物料主数据，开工时调用一次
func (s *Session) SetVerificationCodes(codes map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.components {
		if code, ok := codes[s.components[i].ItemCode]; ok {
			s.components[i].VerificationCode = code
		}
	}
}

// Scan 扫描下一个未完成的槽位（先元件后传感器，按序号顺推）
func (s *Session) Scan(barcode string) (ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine.Is(fsm.StateCompleted) {
		return ScanResult{}, &AlreadyCompletedError{SessionID: s.ID}
	}
	slot := s.nextUnscanned()
	if slot == nil {
		return ScanResult{}, &NoOpenSlotError{SessionID: s.ID}
	}
	return s.scanSlot(slot, barcode)
}

// ScanAt 扫描指定槽位，支持操作员跳位补扫
func (s *Session) ScanAt(kind types.SlotKind, position int, barcode string) (ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine.Is(fsm.StateCompleted) {
		return ScanResult{}, &AlreadyCompletedError{SessionID: s.ID}
	}
	slot := s.findSlot(kind, position)
	if slot == nil {
		return ScanResult{}, &SlotNotFoundError{Kind: kind, Position: position}
	}
	return s.scanSlot(slot, barcode)
}

// scanSlot 校验并落位一次扫描，任何一条检查失败都不改变状态
func (s *Session) scanSlot(slot *types.Slot, barcode string) (ScanResult, error) {
	if slot.Scanned {
		return ScanResult{}, &DuplicateScanError{Kind: slot.Kind, Position: slot.Position}
	}
	if s.usedBarcodes[barcode] {
		return ScanResult{}, &DuplicateBarcodeError{Barcode: barcode}
	}
	if !verify.Matches(barcode, slot.VerificationCode) {
		return ScanResult{}, &VerificationMismatchError{
			Kind:     slot.Kind,
			Position: slot.Position,
			Expected: slot.VerificationCode,
			Barcode:  barcode,
		}
	}

	slot.Scanned = true
	slot.ScannedBarcode = barcode
	slot.ScanTime = time.Now()
	s.usedBarcodes[barcode] = true

	ready := s.readyLocked()
	if ready && s.machine.Is(fsm.StateInProgress) {
		_ = s.machine.Trigger(fsm.EventSlotsFilled)
	}
	return ScanResult{Slot: *slot, Ready: ready}, nil
}

func (s *Session) nextUnscanned() *types.Slot {
	for i := range s.components {
		if !s.components[i].Scanned {
			return &s.components[i]
		}
	}
	for i := range s.sensors {
		if !s.sensors[i].Scanned {
			return &s.sensors[i]
		}
	}
	return nil
}

func (s *Session) findSlot(kind types.SlotKind, position int) *types.Slot {
	list := s.components
	if kind == types.SlotSensor {
		list = s.sensors
	}
	for i := range list {
		if list[i].Position == position {
			return &list[i]
		}
	}
	return nil
}

// readyLocked 双闸门完工判定：元件、传感器各自扫满，互不抵扣
func (s *Session) readyLocked() bool {
	return countScanned(s.components) == len(s.components) &&
		countScanned(s.sensors) == len(s.sensors)
}

func countScanned(slots []types.Slot) int {
	n := 0
	for _, slot := range slots {
		if slot.Scanned {
			n++
		}
	}
	return n
}

// EnsureReady 完工前的闸门检查，未扫满返回带计数和缺扫槽位的错误
func (s *Session) EnsureReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readyLocked() {
		return nil
	}

	var missing []types.Slot
	for _, slot := range s.components {
		if !slot.Scanned {
			missing = append(missing, slot)
		}
	}
	for _, slot := range s.sensors {
		if !slot.Scanned {
			missing = append(missing, slot)
		}
	}
	return &NotReadyError{
		ScannedComponents:  countScanned(s.components),
		RequiredComponents: len(s.components),
		ScannedSensors:     countScanned(s.sensors),
		RequiredSensors:    len(s.sensors),
		MissingSlots:       missing,
	}
}

// MarkCompleted 记录完工结果并推进状态机，重复调用保持首次结果
// 会话未就绪时状态转移失败，结果不缓存并返回错误
func (s *Session) MarkCompleted(result types.CompletionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil {
		return nil
	}
	if err := s.machine.Trigger(fsm.EventComplete); err != nil {
		return err
	}
	s.result = &result
	return nil
}

// CompletionResult 返回缓存的完工结果（幂等完工的依据）
func (s *Session) CompletionResult() (types.CompletionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return types.CompletionResult{}, false
	}
	return *s.result, true
}

// Abandon 放弃会话，不产生任何远程或本地副作用
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.machine.Trigger(fsm.EventAbandon)
}

// State 当前状态机状态
func (s *Session) State() fsm.State {
	return s.machine.CurrentState()
}

// ScannedParts 按扫描顺序导出全部明细（元件在前，传感器在后）
func (s *Session) ScannedParts() []types.ScannedPart {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := make([]types.ScannedPart, 0, len(s.components)+len(s.sensors))
	seq := 1
	for _, slot := range append(append([]types.Slot(nil), s.components...), s.sensors...) {
		if !slot.Scanned {
			continue
		}
		parts = append(parts, types.ScannedPart{
			Name:     slot.Name,
			ItemCode: slot.ItemCode,
			Barcode:  slot.ScannedBarcode,
			ScanTime: slot.ScanTime,
			Sequence: seq,
			Kind:     slot.Kind,
		})
		seq++
	}
	return parts
}

// Snapshot 导出会话只读视图
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ID:                 s.ID,
		TypeCode:           s.Config.TypeCode,
		Family:             s.Config.Family,
		Name:               s.Config.Name,
		Subtitle:           s.Config.Subtitle,
		WorkOrderID:        s.WorkOrderID,
		Product:            s.Product,
		State:              string(s.machine.CurrentState()),
		ScannedComponents:  countScanned(s.components),
		RequiredComponents: len(s.components),
		ScannedSensors:     countScanned(s.sensors),
		RequiredSensors:    len(s.sensors),
		Components:         append([]types.Slot(nil), s.components...),
		Sensors:            append([]types.Slot(nil), s.sensors...),
		StartedAt:          s.StartedAt,
	}
}
