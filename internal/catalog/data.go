package catalog

import (
	"fmt"

	"pcb-assembly-tracking/internal/types"
)

// ybsComponentNames YBS 系列六个元件位的固定名称，所有变体一致
var ybsComponentNames = [6]string{
	"Left Slave PCB",
	"Master PCB",
	"Right Slave PCB",
	"Board-to-Board (Left to Master)",
	"Board-to-Board (Master to Right)",
	"Power & Communication Cable",
}

// ybsStandardVerify 标准 YBS 元件校验码（大部分变体使用）
var ybsStandardVerify = [6]string{"24", "25", "3Q4", "O", "P", "J"}

// ybsILIVerify ILI 风道变体（5YB011447）使用的元件校验码
var ybsILIVerify = [6]string{"L", "09", "S", "0V", "0V", "0Q"}

// codeGroup 描述一段传感器位置共用的校验码
// 未被任何分组覆盖的位置校验码为空，即免校验位
type codeGroup struct {
	code      string
	positions []int
}

// ybsVariant 描述一个 YBS 变体的静态物料数据
// 传感器物料编码按 standard/special 两档展开，specialAt 列出特殊位
type ybsVariant struct {
	typeCode       string
	subtitle       string
	componentCodes [6]string
	componentVer   [6]string
	sensorCount    int
	sensorStandard string
	sensorSpecial  string
	specialAt      []int
	sensorGroups   []codeGroup
}

// rsmSlot RSM 变体的一个元件位（RSM 校验码由物料主数据在开工时补齐，静态表不含）
type rsmSlot struct {
	name     string
	itemCode string
}

// rsmVariant 描述一个 RSM 变体的静态物料数据
type rsmVariant struct {
	typeCode string
	subtitle string
	slots    []rsmSlot
}

// seq 生成 [from, to] 的连续位置序列
func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// standardSensorGroups 标准传感器校验码分段：前段 "1"、后段 "2"、末位免校验
func standardSensorGroups(count int) []codeGroup {
	switch count {
	case 23:
		return []codeGroup{{"1", seq(1, 12)}, {"2", seq(13, 22)}}
	case 24:
		return []codeGroup{{"1", seq(1, 12)}, {"2", seq(13, 23)}}
	case 25:
		return []codeGroup{{"1", seq(1, 13)}, {"2", seq(14, 24)}}
	}
	return nil
}

// ybsVariants 全部 12 个 YBS 变体
var ybsVariants = []ybsVariant{
	{
		typeCode:       "5YB011056",
		subtitle:       "YBS Machine - Duct Number 41 - 23 Duct Assembly",
		componentCodes: [6]string{"4YB013250", "4YB013248", "4YB013251", "4YB013258", "4YB013258", "4YB013254"},
		componentVer:   ybsStandardVerify,
		sensorCount:    23,
		sensorStandard: "5YB013254",
		sensorSpecial:  "5YB013255",
		specialAt:      []int{1, 16},
		sensorGroups:   standardSensorGroups(23),
	},
	{
		typeCode:       "5YB011057",
		subtitle:       "Assembly Verification",
		componentCodes: [6]string{"4YB013250", "4YB013248", "4YB013251", "4YB013258", "4YB013258", "4YB013255"},
		componentVer:   ybsStandardVerify,
		sensorCount:    24,
		sensorStandard: "5YB013254",
		sensorSpecial:  "5YB013255",
		specialAt:      []int{1, 16, 24},
		sensorGroups:   standardSensorGroups(24),
	},
	{
		typeCode:       "5YB011059",
		subtitle:       "YBS Machine - Duct Number 41 - 25 Duct Assembly",
		componentCodes: [6]string{"4YB013250", "4YB013249", "4YB013251", "4YB013258", "4YB013258", "4YB013256"},
		componentVer:   ybsStandardVerify,
		sensorCount:    25,
		sensorStandard: "5YB013254",
		sensorSpecial:  "5YB013255",
		specialAt:      []int{1, 16, 17, 22, 23, 24, 25},
		sensorGroups:   standardSensorGroups(25),
	},
	{
		typeCode:       "5YB011099",
		subtitle:       "YBS Machine - 23 Duct Assembly",
		componentCodes: [6]string{"4YB013250", "4YB013248", "4YB013271", "4YB013258", "4YB013258", "TYB012092"},
		componentVer:   ybsStandardVerify,
		sensorCount:    23,
		sensorStandard: "5YB013256",
		sensorSpecial:  "5YB013257",
		specialAt:      []int{1, 16},
		sensorGroups:   standardSensorGroups(23),
	},
	{
		typeCode:       "5YB011100",
		subtitle:       "YBS Machine - 24 Duct Assembly",
		componentCodes: [6]string{"4YB013250", "4YB013248", "4YB013271", "4YB013258", "4YB013258", "TYB012093"},
		componentVer:   ybsStandardVerify,
		sensorCount:    24,
		sensorStandard: "5YB013256",
		sensorSpecial:  "5YB013257",
		specialAt:      []int{1, 16},
		sensorGroups:   standardSensorGroups(24),
	},
	{
		typeCode:       "5YB011101",
		subtitle:       "YBS Machine - 25 Duct Assembly",
		componentCodes: [6]string{"4YB013250", "4YB013248", "4YB013271", "4YB013258", "4YB013258", "TYB012094"},
		componentVer:   ybsStandardVerify,
		sensorCount:    25,
		sensorStandard: "5YB013256",
		sensorSpecial:  "5YB013257",
		specialAt:      []int{1, 16},
		sensorGroups:   standardSensorGroups(25),
	},
	{
		typeCode:       "5YB011111",
		subtitle:       "YBS Machine - 23 Duct Assembly",
		componentCodes: [6]string{"4YB013250", "4YB013248", "4YB013271", "4YB013275", "4YB013275", "TYB012092"},
		componentVer:   ybsStandardVerify,
		sensorCount:    23,
		sensorStandard: "5YB013262",
		sensorSpecial:  "5YB013263",
		specialAt:      []int{1, 16},
		sensorGroups:   standardSensorGroups(23),
	},
	{
		typeCode:       "5YB011112",
		subtitle:       "YBS Machine - 24 Duct Assembly",
		componentCodes: [6]string{"4YB013250", "4YB013248", "4YB013271", "4YB013275", "4YB013275", "TYB012093"},
		componentVer:   ybsStandardVerify,
		sensorCount:    24,
		sensorStandard: "5YB013262",
		sensorSpecial:  "5YB013263",
		specialAt:      []int{1, 16},
		sensorGroups:   standardSensorGroups(24),
	},
	{
		typeCode:       "5YB011113",
		subtitle:       "YBS Machine - 25 Duct Assembly",
		componentCodes: [6]string{"4YB013250", "4YB013248", "4YB013271", "4YB013275", "4YB013275", "TYB012094"},
		componentVer:   ybsStandardVerify,
		sensorCount:    25,
		sensorStandard: "5YB013262",
		sensorSpecial:  "5YB013263",
		specialAt:      []int{1, 16},
		sensorGroups:   standardSensorGroups(25),
	},
	{
		typeCode:       "5YB011446",
		subtitle:       "YBS Machine - 23 Duct Assembly",
		componentCodes: [6]string{"4YB013250", "4YB013307", "4YB013271", "4YB013323", "4YB013323", "4YB013317"},
		componentVer:   ybsStandardVerify,
		sensorCount:    23,
		sensorStandard: "5YB013285",
		sensorSpecial:  "5YB013286",
		specialAt:      []int{1, 16},
		sensorGroups:   standardSensorGroups(23),
	},
	{
		typeCode:       "5YB011447",
		subtitle:       "YBS Machine - 24 Duct Assembly",
		componentCodes: [6]string{"4YB013250", "4YB013308", "4YB013271", "4YB013323", "4YB013323", "4YB013318"},
		componentVer:   ybsILIVerify,
		sensorCount:    24,
		sensorStandard: "5YB013285",
		sensorSpecial:  "5YB013286",
		specialAt:      []int{1, 16},
		// 447 全部位置都要求校验：特殊位 S8，其余 S3，无免校验位
		sensorGroups: []codeGroup{{"S8", []int{1, 16}}, {"S3", append(seq(2, 15), seq(17, 24)...)}},
	},
	{
		typeCode:       "5YB011448",
		subtitle:       "YBS Machine - 24 Duct Assembly",
		componentCodes: [6]string{"4YB013250", "4YB013308", "4YB013271", "4YB013323", "4YB013323", "4YB013319"},
		componentVer:   ybsStandardVerify,
		sensorCount:    24,
		sensorStandard: "5YB013284",
		sensorSpecial:  "5YB013286",
		specialAt:      []int{1, 16},
		sensorGroups:   standardSensorGroups(24),
	},
}

// rsmVariants 全部 8 个 RSM 变体
var rsmVariants = []rsmVariant{
	{
		typeCode: "5RS011027",
		subtitle: "3Slave 1Master 70 mm",
		slots: []rsmSlot{
			{"Slave PCB 1", "4RS013097"},
			{"Slave PCB 2", "4RS013097"},
			{"Slave PCB 3", "4RS013097"},
			{"Master PCB", "4RS013114"},
			{"Slave to Slave Cable 1", "4RS013120"},
			{"Slave to Slave Cable 2", "4RS013120"},
			{"Master to Slave Cable", "4RS013121"},
			{"Power & Communication Cable", "4RS013122"},
		},
	},
	{
		typeCode: "5RS011028",
		subtitle: "6Slave 36 mm",
		slots: []rsmSlot{
			{"Slave PCB 1", "4RS013097"},
			{"Slave PCB 2", "4RS013097"},
			{"Slave PCB 3", "4RS013097"},
			{"Slave to Slave Cable 1", "4RS013120"},
			{"Slave to Slave Cable 2", "4RS013120"},
			{"Power & Communication Cable", "4RS013122"},
		},
	},
	{
		typeCode: "5RS011075",
		subtitle: "1Master 3Slave 75 mm",
		slots: []rsmSlot{
			{"Slave PCB 1", "4RS013097"},
			{"Slave PCB 2", "4RS013097"},
			{"Slave PCB 3", "4RS013097"},
			{"Slave to Slave Cable 1", "4RS013147"},
			{"Slave to Slave Cable 2", "4RS013147"},
			{"Power & Communication Cable", "4RS013146"},
		},
	},
	{
		typeCode: "5RS011076",
		subtitle: "3Slave 75 mm",
		slots: []rsmSlot{
			{"Slave PCB 1", "4RS013097"},
			{"Slave PCB 2", "4RS013097"},
			{"Slave PCB 3", "4RS013097"},
			{"Slave to Slave Cable 1", "4RS013147"},
			{"Slave to Slave Cable 2", "4RS013147"},
			{"Power & Communication Cable", "4RS013146"},
		},
	},
	{
		typeCode: "5RS011092",
		subtitle: "3Slave 92 mm",
		slots: []rsmSlot{
			{"Slave PCB 1", "4RS013152"},
			{"Slave PCB 2", "4RS013152"},
			{"Slave PCB 3", "4RS013152"},
			{"Slave to Slave Cable 1", "4RS013134"},
			{"Slave to Slave Cable 2", "4RS013134"},
			{"Power & Communication Cable", "4RS013124"},
		},
	},
	{
		typeCode: "5RS011093",
		subtitle: "2Slave 93 mm",
		slots: []rsmSlot{
			{"Slave PCB 1", "4RS013152"},
			{"Slave PCB 2", "4RS013152"},
			{"Slave to Slave Cable 1", "4RS013134"},
			{"Power & Communication Cable", "4RS013124"},
		},
	},
	{
		typeCode: "5RS011111",
		subtitle: "3Slave 1Master 1Right 111 mm",
		slots: []rsmSlot{
			{"Slave PCB 1", "4RS013097"},
			{"Slave PCB 2", "4RS013097"},
			{"Slave PCB 3", "4RS013097"},
			{"Master PCB", "4RS013114"},
			{"Slave to Slave Cable 1", "4RS013120"},
			{"Slave to Slave Cable 2", "4RS013120"},
			{"Master to Right Cable", "4RS013121"},
			{"Power & Communication Cable", "4RS013122"},
		},
	},
	{
		typeCode: "5RS011112",
		subtitle: "3Slave 112 mm",
		slots: []rsmSlot{
			{"Slave PCB 1", "4RS013097"},
			{"Slave PCB 2", "4RS013097"},
			{"Slave PCB 3", "4RS013097"},
			{"Slave to Slave Cable 1", "4RS013120"},
			{"Slave to Slave Cable 2", "4RS013120"},
			{"Power & Communication Cable", "4RS013122"},
		},
	},
}

// build 把静态数据展开成完整的 AssemblyTypeConfig
func (v ybsVariant) build() types.AssemblyTypeConfig {
	cfg := types.AssemblyTypeConfig{
		TypeCode:       v.typeCode,
		Family:         types.FamilyYBS,
		Name:           "YBS Assembly - " + v.typeCode,
		Subtitle:       v.subtitle,
		ComponentCount: len(v.componentCodes),
		SensorCount:    v.sensorCount,
	}
	for i, code := range v.componentCodes {
		cfg.Components = append(cfg.Components, types.Slot{
			Kind:             types.SlotComponent,
			Position:         i + 1,
			Name:             ybsComponentNames[i],
			ItemCode:         code,
			VerificationCode: v.componentVer[i],
		})
	}
	special := make(map[int]bool, len(v.specialAt))
	for _, p := range v.specialAt {
		special[p] = true
	}
	verify := make(map[int]string, v.sensorCount)
	for _, g := range v.sensorGroups {
		for _, p := range g.positions {
			verify[p] = g.code
		}
	}
	for p := 1; p <= v.sensorCount; p++ {
		item := v.sensorStandard
		if special[p] {
			item = v.sensorSpecial
		}
		cfg.Sensors = append(cfg.Sensors, types.Slot{
			Kind:             types.SlotSensor,
			Position:         p,
			Name:             fmt.Sprintf("Sensor %d", p),
			ItemCode:         item,
			VerificationCode: verify[p],
		})
	}
	return cfg
}

// build 把静态数据展开成完整的 AssemblyTypeConfig
// RSM 无传感器位，元件校验码留空，待会话开工时由物料主数据补齐
func (v rsmVariant) build() types.AssemblyTypeConfig {
	cfg := types.AssemblyTypeConfig{
		TypeCode:       v.typeCode,
		Family:         types.FamilyRSM,
		Name:           "RSM Assembly - " + v.typeCode,
		Subtitle:       v.subtitle,
		ComponentCount: len(v.slots),
	}
	for i, s := range v.slots {
		cfg.Components = append(cfg.Components, types.Slot{
			Kind:     types.SlotComponent,
			Position: i + 1,
			Name:     s.name,
			ItemCode: s.itemCode,
		})
	}
	return cfg
}
