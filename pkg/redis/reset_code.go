package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// NewResetCode 为邮箱生成一次性 PIN 重置码并带 TTL 写入。
func NewResetCode(ctx context.Context, rdb *rd.Client, email string, ttl time.Duration) (string, error) {
	code := uuid.New().String()
	if err := rdb.Set(ctx, ResetCodeKey(code), email, ttl).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// ConsumeResetCode 校验并销毁重置码（GETDEL 原子取走，重置码只能用一次）。
// found=false 表示重置码不存在或已过期。
func ConsumeResetCode(ctx context.Context, rdb *rd.Client, code string) (string, bool, error) {
	email, err := rdb.GetDel(ctx, ResetCodeKey(code)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return email, true, nil
}
