package model

import "time"

// StatusLog 状态变更审计流水，由 Kafka 消费者异步落库。
// EventID 唯一索引保证重复消费天然幂等。
type StatusLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	EventID string      `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	Token   string      `gorm:"size:32;not null;index" json:"token"`
	Phone   string      `gorm:"size:16;index" json:"phone"`
	Status  OrderStatus `gorm:"size:32;not null" json:"status"`
	At      time.Time   `gorm:"not null" json:"at"`
}

func (StatusLog) TableName() string { return "status_logs" }
