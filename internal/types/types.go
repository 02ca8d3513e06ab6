package types

import "time"

// Family 定义产品系列（YBS / RSM 两大 PCB 装配系列）
// 使用字符串类型，方便在日志和配置中直接使用
type Family string

const (
	FamilyYBS Family = "YBS" // YBS 系列：带传感器通道的导管装配
	FamilyRSM Family = "RSM" // RSM 系列：纯元件装配（校验码由物料主数据提供）
)

// SlotKind 定义扫描槽位的类别
type SlotKind string

const (
	SlotComponent SlotKind = "component" // 元件槽位（PCB、线缆等）
	SlotSensor    SlotKind = "sensor"    // 传感器槽位
)

// WorkOrderStatus 定义工单状态，与远程工单服务的取值保持一致
type WorkOrderStatus string

const (
	StatusPending    WorkOrderStatus = "Pending"
	StatusInProgress WorkOrderStatus = "In Progress"
	StatusCompleted  WorkOrderStatus = "Completed"
	StatusCancelled  WorkOrderStatus = "Cancelled"
)

// Slot 表示装配类型中的一个扫描位
// Position 为 1 起始的序号；VerificationCode 为空表示该位免校验（自动通过）
type Slot struct {
	Kind             SlotKind  `json:"kind"`
	Position         int       `json:"position"`
	Name             string    `json:"name"`
	ItemCode         string    `json:"item_code"`
	VerificationCode string    `json:"verification_code,omitempty"`
	Scanned          bool      `json:"scanned"`
	ScannedBarcode   string    `json:"scanned_barcode,omitempty"`
	ScanTime         time.Time `json:"scan_time,omitzero"`
}

// AssemblyTypeConfig 描述一个可生产的装配变体（如 5YB011057、5RS011027）
// 由 catalog 包在启动时加载并校验，会话期间只读
type AssemblyTypeConfig struct {
	TypeCode       string // 装配类型编码
	Family         Family // 所属系列
	Name           string // 展示名称
	Subtitle       string // 副标题（如 "24 Duct Assembly"）
	ComponentCount int    // 要求的元件数量
	SensorCount    int    // 要求的传感器数量（RSM 为 0）
	Components     []Slot // 元件槽位模板，按 Position 排序
	Sensors        []Slot // 传感器槽位模板，按 Position 排序
}

// WorkOrder 表示远程工单服务中的一条工单记录
// 本系统只读取并 PATCH，生命周期归远程服务所有
type WorkOrder struct {
	ID                string          `json:"id"`
	ItemCode          string          `json:"item_code"`
	Product           string          `json:"product"`
	PCBType           string          `json:"pcb_type"`
	PCBItemCode       string          `json:"pcb_item_code,omitempty"`
	Quantity          int             `json:"quantity"`
	CompletedQuantity int             `json:"completed_quantity"`
	Status            WorkOrderStatus `json:"status"`
	ReleasedBy        string          `json:"released_by,omitempty"`
	IsRework          bool            `json:"is_rework,omitempty"`
	ReworkReference   string          `json:"rework_reference,omitempty"`
}

// ScannedPart 表示完工记录中的一条扫描明细
type ScannedPart struct {
	Name     string    `json:"component_name"`
	ItemCode string    `json:"item_code"`
	Barcode  string    `json:"scanned_barcode"`
	ScanTime time.Time `json:"scan_time"`
	Sequence int       `json:"sequence"`
	Kind     SlotKind  `json:"type"`
}

// CompletedAssembly 表示一条已完工的装配记录
// 完工时创建一次，之后只有返工流程会修改它（打上 reworked 标记）
type CompletedAssembly struct {
	AssemblyID   string        `json:"assembly_id"`
	WorkOrderID  string        `json:"work_order_id,omitempty"`
	TypeCode     string        `json:"item_code"`
	Family       Family        `json:"pcb_type"`
	Product      string        `json:"product"`
	Barcode      string        `json:"barcode_number"`
	CompletedAt  time.Time     `json:"completed_at"`
	CompletedBy  string        `json:"completed_by,omitempty"`
	ScannedParts []ScannedPart `json:"scanned_parts"`
	IsRework     bool          `json:"is_rework,omitempty"`
	Reworked     bool          `json:"reworked,omitempty"`
	ReworkReason string        `json:"rework_reason,omitempty"`
	ReworkCount  int           `json:"rework_count,omitempty"`
	SessionID    string        `json:"session_id,omitempty"`

	// 开工时已知的工单计数快照，远程中断时用来向操作员反馈进度
	OrderQuantity  int `json:"work_order_quantity,omitempty"`
	OrderCompleted int `json:"work_order_completed,omitempty"`
}

// CompletionNotice 是 complete_assembly 接口的请求体
// 字段名与远程工单服务的约定一致，这个调用驱动服务端的数量累加
type CompletionNotice struct {
	AssemblyBarcode   string        `json:"assembly_barcode"`
	ScannedComponents []ScannedPart `json:"scanned_components"`
	CompletedBy       string        `json:"completed_by"`
	StartTime         time.Time     `json:"start_time"`
	QualityNotes      string        `json:"quality_notes"`
}

// ReworkRequest 是 create_rework 接口的请求体
type ReworkRequest struct {
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes"`
	ReleasedBy string `json:"released_by"`
}

// WorkOrderOutcome 表示一次完工对工单数量状态的影响（本地视图）
// 即使远程调用失败，也用它向操作员反馈进度
type WorkOrderOutcome struct {
	WorkOrder        WorkOrder `json:"work_order"`
	IsFullyCompleted bool      `json:"is_fully_completed"`
	Remaining        int       `json:"remaining"`
}

// CompletionResult 表示一次装配完工的最终结果
// 远程调用失败只会降级 PersistedRemotely，不影响 Success
type CompletionResult struct {
	Success           bool              `json:"success"`
	AssemblyBarcode   string            `json:"assembly_barcode"`
	WorkOrderOutcome  *WorkOrderOutcome `json:"work_order_outcome,omitempty"`
	PersistedRemotely bool              `json:"persisted_remotely"`
	Message           string            `json:"message,omitempty"`
}
