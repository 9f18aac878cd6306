package domain

import "math"

// Plan 表示邮箱的订阅套餐，决定存储配额上限。
type Plan string

const (
	PlanFree      Plan = "FREE"
	PlanPro       Plan = "PRO"
	PlanUnlimited Plan = "UNLIMITED"
)

// storageLimits 套餐 -> 存储上限（字节）静态映射表。
var storageLimits = map[Plan]int64{
	PlanFree:      100 * 1024 * 1024,      // 100 MiB
	PlanPro:       5 * 1024 * 1024 * 1024, // 5 GiB
	PlanUnlimited: math.MaxInt64,
}

// StorageLimit 返回套餐对应的存储上限。
// 未知套餐按 FREE 处理。
func (p Plan) StorageLimit() int64 {
	if limit, ok := storageLimits[p]; ok {
		return limit
	}
	return storageLimits[PlanFree]
}

// OverQuota 判断邮箱当前用量是否已达到套餐上限。
//
// 准入检查发生在加上新邮件体积之前，因此接收后实际用量
// 最多可超出上限一封邮件的大小。
func (m *Mailbox) OverQuota() bool {
	return m.StorageUsed >= m.Plan.StorageLimit()
}
