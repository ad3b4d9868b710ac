package queue

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"

	"grain_store/internal/model"
)

// Consumer 消费状态事件并追加到 status_logs 审计表。
type Consumer struct {
	r  *kafka.Reader
	db *gorm.DB
}

func NewConsumer(brokers []string, topic, groupID string, db *gorm.DB) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		db: db,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}

		var msg StatusMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			log.Printf("status consumer unmarshal: %v", err)
			continue
		}
		if err := msg.Validate(); err != nil {
			log.Printf("status consumer invalid message: %v", err)
			continue
		}

		entry := &model.StatusLog{
			EventID: msg.EventID,
			Token:   msg.Token,
			Phone:   msg.Phone,
			Status:  model.OrderStatus(msg.Status),
			At:      time.UnixMilli(msg.AtMs),
		}

		if err := c.db.Create(entry).Error; err != nil {
			// 幂等：重复消息导致 event_id 唯一冲突，直接当作成功。
			if errorsLikeUnique(err) {
				continue
			}
			log.Printf("status consumer db create: %v", err)
			continue
		}
	}
}

func errorsLikeUnique(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique")
}
