// Package verify 实现条码与槽位校验码的匹配规则
//
// 规则来自产线实际使用的条码格式：
//   - 校验码为空的槽位免校验，任何条码都通过
//   - 多字符校验码在条码中做不区分大小写的子串匹配
//   - 单字符校验码只匹配条码第 5 位（区分大小写），条码不足 5 位判失败
//
// 单字符规则是为了区分同一物料不同段位的条码（如传感器段位码 "1"/"2"），
// 子串匹配会在随机段误命中，必须钉死在固定位置
package verify

import "strings"

// Matches 判断条码是否满足槽位的校验码要求
func Matches(barcode, verificationCode string) bool {
	if verificationCode == "" {
		return true
	}
	if len(verificationCode) >= 2 {
		return strings.Contains(strings.ToLower(barcode), strings.ToLower(verificationCode))
	}
	// 单字符：严格匹配第 5 位
	if len(barcode) < 5 {
		return false
	}
	return barcode[4] == verificationCode[0]
}
