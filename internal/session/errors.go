package session

import (
	"fmt"
	"strings"

	"pcb-assembly-tracking/internal/types"
)

// DuplicateScanError 槽位已经扫描过，重复扫描被拒绝
type DuplicateScanError struct {
	Kind     types.SlotKind
	Position int
}

func (e *DuplicateScanError) Error() string {
	return fmt.Sprintf("槽位已扫描: %s %d", e.Kind, e.Position)
}

// DuplicateBarcodeError 同一条码在本会话中已被其他槽位使用
type DuplicateBarcodeError struct {
	Barcode string
}

func (e *DuplicateBarcodeError) Error() string {
	return fmt.Sprintf("条码已被使用: %s", e.Barcode)
}

// VerificationMismatchError 条码与槽位校验码不匹配
type VerificationMismatchError struct {
	Kind     types.SlotKind
	Position int
	Expected string
	Barcode  string
}

func (e *VerificationMismatchError) Error() string {
	return fmt.Sprintf("条码校验失败: %s %d 要求校验码 %q, 条码 %s",
		e.Kind, e.Position, e.Expected, e.Barcode)
}

// SlotNotFoundError 指定的槽位不存在
type SlotNotFoundError struct {
	Kind     types.SlotKind
	Position int
}

func (e *SlotNotFoundError) Error() string {
	return fmt.Sprintf("槽位不存在: %s %d", e.Kind, e.Position)
}

// NotReadyError 槽位未扫满，不允许完工
// 元件和传感器两道闸门独立计数，缺一不可；MissingSlots 供操作员定位缺扫位
type NotReadyError struct {
	ScannedComponents  int
	RequiredComponents int
	ScannedSensors     int
	RequiredSensors    int
	MissingSlots       []types.Slot
}

func (e *NotReadyError) Error() string {
	missing := make([]string, 0, len(e.MissingSlots))
	for _, slot := range e.MissingSlots {
		missing = append(missing, fmt.Sprintf("%s %d", slot.Kind, slot.Position))
	}
	return fmt.Sprintf("尚不满足完工条件: 元件 %d/%d, 传感器 %d/%d, 未扫槽位: %s",
		e.ScannedComponents, e.RequiredComponents,
		e.ScannedSensors, e.RequiredSensors, strings.Join(missing, ", "))
}

// NoOpenSlotError 全部槽位已扫描，会话在等待完工确认
type NoOpenSlotError struct {
	SessionID string
}

func (e *NoOpenSlotError) Error() string {
	return fmt.Sprintf("全部槽位已扫描，等待完工确认: %s", e.SessionID)
}

// NotFoundError 指定的会话不在会话表中
type NotFoundError struct {
	SessionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("会话不存在: %s", e.SessionID)
}

// AlreadyCompletedError 会话已完工，不再接受扫描
type AlreadyCompletedError struct {
	SessionID string
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("会话已完工: %s", e.SessionID)
}
