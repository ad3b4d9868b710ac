package queue

import "fmt"

// StatusMessage 是订单状态变更的审计事件，经 outbox/Kafka 异步流转。
type StatusMessage struct {
	EventID string `json:"event_id"`
	Token   string `json:"token"`
	Phone   string `json:"phone"`
	Status  string `json:"status"`
	AtMs    int64  `json:"at_ms"` // 变更时刻，Unix 毫秒
}

// Validate 做最小字段校验，防止消费端处理脏消息。
func (m StatusMessage) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if m.Token == "" {
		return fmt.Errorf("token is required")
	}
	if m.Status == "" {
		return fmt.Errorf("status is required")
	}
	if m.AtMs <= 0 {
		return fmt.Errorf("at_ms must be > 0")
	}
	return nil
}
