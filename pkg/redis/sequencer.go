package redis

import (
	"context"
	"errors"
	"fmt"

	rd "github.com/redis/go-redis/v9"
)

// ErrStorageUnavailable 表示计数器存储不可达，调用方应放弃本次建单。
var ErrStorageUnavailable = errors.New("token counter storage unavailable")

// counterStart 沿用历史取值：计数器从 100 起步，首个订单号为 101。
const counterStart = 100

// Sequencer 基于 Redis INCR 发放全局唯一、单调递增的订单号。
// INCR 本身就是“原子自增并返回”，多实例共享同一 Redis 时无需任何应用层锁；
// 建单失败造成的空洞可以接受，重复发号不可接受。
type Sequencer struct {
	rdb *rd.Client
}

func NewSequencer(rdb *rd.Client) *Sequencer {
	return &Sequencer{rdb: rdb}
}

// Seed 用 SETNX 初始化计数器：取 counterStart 与已持久化的最大订单号中的较大者，
// 保证 Redis 重建后从上次发放的号继续，而不是回头重发。
func (s *Sequencer) Seed(ctx context.Context, maxPersisted int64) error {
	seed := int64(counterStart)
	if maxPersisted > seed {
		seed = maxPersisted
	}
	if err := s.rdb.SetNX(ctx, OrderTokenCounterKey(), seed, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Next 原子取下一个订单号。并发调用永不返回相同值。
func (s *Sequencer) Next(ctx context.Context) (int64, error) {
	n, err := s.rdb.Incr(ctx, OrderTokenCounterKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return n, nil
}
