package queue

import (
	"context"
	"strconv"

	rd "github.com/redis/go-redis/v9"
)

// Outbox 把状态事件 XADD 进 Redis Stream。
// 权威状态已在 DB 提交，这里只是审计尾巴：入流失败由调用方记日志，
// 绝不反过来让请求失败。
type Outbox struct {
	rdb    *rd.Client
	stream string
}

func NewOutbox(rdb *rd.Client, stream string) *Outbox {
	return &Outbox{rdb: rdb, stream: stream}
}

// Append 追加一条状态事件。
func (o *Outbox) Append(ctx context.Context, msg StatusMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		Values: map[string]interface{}{
			"event_id": msg.EventID,
			"token":    msg.Token,
			"phone":    msg.Phone,
			"status":   msg.Status,
			"at_ms":    strconv.FormatInt(msg.AtMs, 10),
		},
	}).Err()
}
