package redis

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) *rd.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestSequencerStartsAfterSeed(t *testing.T) {
	rdb := newTestClient(t)
	s := NewSequencer(rdb)
	ctx := context.Background()

	if err := s.Seed(ctx, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	n, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != 101 {
		t.Fatalf("first token = %d, want 101", n)
	}
}

func TestSequencerSeedResumesFromPersistedMax(t *testing.T) {
	rdb := newTestClient(t)
	s := NewSequencer(rdb)
	ctx := context.Background()

	if err := s.Seed(ctx, 560); err != nil {
		t.Fatalf("seed: %v", err)
	}
	n, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != 561 {
		t.Fatalf("token after resume = %d, want 561", n)
	}

	// 二次 Seed 不得回拨计数器
	if err := s.Seed(ctx, 0); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	n, err = s.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != 562 {
		t.Fatalf("token after re-seed = %d, want 562", n)
	}
}

// 并发取号：两两不同，且恰为连续区间（原子自增不丢号、不重号）。
func TestSequencerConcurrentNextDistinct(t *testing.T) {
	rdb := newTestClient(t)
	s := NewSequencer(rdb)
	ctx := context.Background()

	if err := s.Seed(ctx, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const n = 100
	tokens := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.Next(ctx)
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			tokens[i] = v
		}(i)
	}
	wg.Wait()

	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
	for i, v := range tokens {
		if want := int64(101 + i); v != want {
			t.Fatalf("tokens[%d] = %d, want %d (duplicate or gap)", i, v, want)
		}
	}
}

func TestSequencerStorageUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	s := NewSequencer(rdb)
	if _, err := s.Next(context.Background()); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
