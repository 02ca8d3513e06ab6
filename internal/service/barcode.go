package service

import (
	"context"
	"fmt"
	"math/rand/v2"

	"pcb-assembly-tracking/internal/types"
)

// 条码段位码的兜底值，物料主数据查不到时使用
const (
	fallbackYBSCode = "24"
	fallbackRSMCode = "12"
)

// GenerateBarcode 生成 11 位装配条码: 4 位随机数字 + 2 位系列段位码 + 5 位随机数字
// 段位码优先取物料主数据中该装配类型的 code 字段，查询失败用系列兜底值
func (s *CompletionService) GenerateBarcode(ctx context.Context, family types.Family, typeCode string) string {
	code := s.familyCode(ctx, family, typeCode)
	return fmt.Sprintf("%04d%s%05d", rand.IntN(10000), code, rand.IntN(100000))
}

func (s *CompletionService) familyCode(ctx context.Context, family types.Family, typeCode string) string {
	fallback := fallbackYBSCode
	if family == types.FamilyRSM {
		fallback = fallbackRSMCode
	}

	items, err := s.client.SearchItemMaster(ctx, typeCode)
	if err != nil {
		s.logger.Warn("查询物料主数据失败，条码段位码使用兜底值",
			"type_code", typeCode, "fallback", fallback, "error", err)
		return fallback
	}
	for _, item := range items {
		if item.ItemCode == typeCode && len(item.Code) == 2 {
			return item.Code
		}
	}
	return fallback
}
