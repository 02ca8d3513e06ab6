package catalog

import (
	"fmt"
	"sort"
	"strings"

	"pcb-assembly-tracking/internal/types"
)

// ConfigurationNotFoundError 请求了目录中不存在的装配类型
type ConfigurationNotFoundError struct {
	TypeCode string
}

func (e *ConfigurationNotFoundError) Error() string {
	return fmt.Sprintf("未找到装配类型配置: %s", e.TypeCode)
}

// Catalog 物料目录：全部可生产装配变体的只读配置表
// 启动时构建并校验一次，之后并发只读，无需加锁
type Catalog struct {
	configs map[string]types.AssemblyTypeConfig
}

// New 构建完整目录（12 个 YBS 变体 + 8 个 RSM 变体）
func New() *Catalog {
	c := &Catalog{configs: make(map[string]types.AssemblyTypeConfig)}
	for _, v := range ybsVariants {
		c.configs[v.typeCode] = v.build()
	}
	for _, v := range rsmVariants {
		c.configs[v.typeCode] = v.build()
	}
	return c
}

// Lookup 按类型编码查找装配配置
// 返回的是副本，调用方可以安全地修改槽位（如补齐 RSM 校验码）
func (c *Catalog) Lookup(typeCode string) (types.AssemblyTypeConfig, error) {
	cfg, ok := c.configs[typeCode]
	if !ok {
		return types.AssemblyTypeConfig{}, &ConfigurationNotFoundError{TypeCode: typeCode}
	}
	out := cfg
	out.Components = append([]types.Slot(nil), cfg.Components...)
	out.Sensors = append([]types.Slot(nil), cfg.Sensors...)
	return out, nil
}

// TypeCodes 返回目录中全部类型编码，排序后输出
func (c *Catalog) TypeCodes() []string {
	codes := make([]string, 0, len(c.configs))
	for code := range c.configs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// FamilyOf 根据类型编码前缀推导产品系列
func FamilyOf(typeCode string) (types.Family, error) {
	switch {
	case strings.HasPrefix(typeCode, "5YB"):
		return types.FamilyYBS, nil
	case strings.HasPrefix(typeCode, "5RS"):
		return types.FamilyRSM, nil
	}
	return "", fmt.Errorf("无法从类型编码推导产品系列: %s", typeCode)
}

// Validate 校验目录数据的自洽性，启动时调用，失败应当直接退出
func (c *Catalog) Validate() error {
	for code, cfg := range c.configs {
		if cfg.ComponentCount != len(cfg.Components) {
			return fmt.Errorf("类型 %s 元件数量不一致: 声明 %d, 实际 %d", code, cfg.ComponentCount, len(cfg.Components))
		}
		if cfg.SensorCount != len(cfg.Sensors) {
			return fmt.Errorf("类型 %s 传感器数量不一致: 声明 %d, 实际 %d", code, cfg.SensorCount, len(cfg.Sensors))
		}
		family, err := FamilyOf(code)
		if err != nil {
			return err
		}
		if family != cfg.Family {
			return fmt.Errorf("类型 %s 系列与编码前缀不符: %s", code, cfg.Family)
		}
		if err := validateSlots(code, cfg.Components); err != nil {
			return err
		}
		if err := validateSlots(code, cfg.Sensors); err != nil {
			return err
		}
	}
	return nil
}

func validateSlots(typeCode string, slots []types.Slot) error {
	for i, s := range slots {
		if s.Position != i+1 {
			return fmt.Errorf("类型 %s 槽位序号不连续: 第 %d 个槽位序号为 %d", typeCode, i+1, s.Position)
		}
		if s.ItemCode == "" {
			return fmt.Errorf("类型 %s 槽位 %d 缺少物料编码", typeCode, s.Position)
		}
	}
	return nil
}
