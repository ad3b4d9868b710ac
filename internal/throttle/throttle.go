package throttle

import (
	"context"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"

	rediskey "grain_store/pkg/redis"
)

// luaCountRecent：剪枝 + 计数，单次 EVAL 原子完成。
// 边界为严格大于：score <= windowStart 的旧记录全部删除，
// 恰好落在窗口边界上的取消记录不计入。
// KEYS[1]=窗口key，ARGV[1]=窗口起点（毫秒）
const luaCountRecent = `
local key = KEYS[1]
local windowStart = tonumber(ARGV[1])
redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)
return redis.call('ZCARD', key)
`

// luaRecordCancel：追加本次取消 + 剪枝 + 计数 + 续期，单次 EVAL 原子完成。
// KEYS[1]=窗口key，ARGV[1]=当前毫秒，ARGV[2]=窗口起点（毫秒），
// ARGV[3]=member，ARGV[4]=key 过期秒数
const luaRecordCancel = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local member = ARGV[3]
local ttlSec = tonumber(ARGV[4])
redis.call('ZADD', key, now, member)
redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)
redis.call('EXPIRE', key, ttlSec)
return redis.call('ZCARD', key)
`

// BlockedError 表示窗口内取消次数已达上限，暂时禁止下单。
type BlockedError struct {
	Count int
	Limit int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("order creation blocked: %d cancellations in the current window (limit %d)", e.Count, e.Limit)
}

// Throttle 按手机号统计滑动窗口内的取消次数。
// 数据放在 Redis ZSET（score=毫秒时间戳），读-剪-写全部走 Lua，
// 下单检查与取消记录之间不存在丢失更新。
type Throttle struct {
	rdb    *rd.Client
	window time.Duration
	limit  int

	// Now 可注入，便于测试窗口边界。
	Now func() time.Time
}

func New(rdb *rd.Client, window time.Duration, limit int) *Throttle {
	return &Throttle{
		rdb:    rdb,
		window: window,
		limit:  limit,
		Now:    time.Now,
	}
}

// CheckCanOrder 剪掉过期取消记录后计数；达到上限返回 *BlockedError。
// 剪枝结果直接落在 ZSET 上，过期记录不会累积。
func (t *Throttle) CheckCanOrder(ctx context.Context, phone string) error {
	now := t.Now()
	windowStart := now.Add(-t.window).UnixMilli()

	count, err := t.rdb.Eval(ctx, luaCountRecent, []string{rediskey.CancelWindowKey(phone)}, windowStart).Int()
	if err != nil {
		return fmt.Errorf("cancel window check: %w", err)
	}
	if count >= t.limit {
		return &BlockedError{Count: count, Limit: t.limit}
	}
	return nil
}

// RecordCancellation 记录一次取消并返回窗口内的当前次数，
// 供上层拼出“第 N 次（共 3 次）”一类的提示语。
func (t *Throttle) RecordCancellation(ctx context.Context, phone string) (int, error) {
	now := t.Now()
	nowMs := now.UnixMilli()
	windowStart := now.Add(-t.window).UnixMilli()
	// 纳秒后缀避免同一毫秒内的两次取消互相覆盖。
	member := fmt.Sprintf("%d-%d", nowMs, now.UnixNano())
	ttlSec := int64(t.window/time.Second) + 1

	count, err := t.rdb.Eval(ctx, luaRecordCancel, []string{rediskey.CancelWindowKey(phone)},
		nowMs, windowStart, member, ttlSec).Int()
	if err != nil {
		return 0, fmt.Errorf("cancel window record: %w", err)
	}
	return count, nil
}

// Limit 返回窗口内允许的最大取消次数。
func (t *Throttle) Limit() int { return t.limit }
