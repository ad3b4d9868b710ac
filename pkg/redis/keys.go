package redis

import "fmt"

// OrderTokenCounterKey 全局订单号计数器键名，所有实例共享。
func OrderTokenCounterKey() string {
	return "grain_store:counter:order_token"
}

// CancelWindowKey 某手机号的取消记录滑动窗口（ZSET，score 为毫秒时间戳）。
func CancelWindowKey(phone string) string {
	return fmt.Sprintf("grain_store:cancel_window:%s", phone)
}

// ResetCodeKey 将忘记 PIN 的重置码映射到账户邮箱。
func ResetCodeKey(code string) string {
	return fmt.Sprintf("grain_store:pin_reset:%s", code)
}
