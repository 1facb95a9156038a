// Package redistest provides an in-memory stand-in for the redis commands the
// platform uses, for tests that should not need a live server.
package redistest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type ExpireCall struct {
	Key string
	TTL time.Duration
}

type Fake struct {
	mu          sync.Mutex
	data        map[string]string
	counters    map[string]int64
	sets        map[string]map[string]struct{}
	ExpireCalls []ExpireCall
	PingErr     error
}

func NewFake() *Fake {
	return &Fake{
		data:     make(map[string]string),
		counters: make(map[string]int64),
		sets:     make(map[string]map[string]struct{}),
	}
}

func (f *Fake) Ping(context.Context) *redis.StatusCmd {
	if f.PingErr != nil {
		return redis.NewStatusResult("", f.PingErr)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (f *Fake) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = stringify(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *Fake) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *Fake) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = stringify(value)
	return redis.NewBoolResult(true, nil)
}

func (f *Fake) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *Fake) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExpireCalls = append(f.ExpireCalls, ExpireCall{Key: key, TTL: ttl})
	return redis.NewBoolResult(true, nil)
}

func (f *Fake) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			removed++
		}
		if _, ok := f.sets[key]; ok {
			removed++
		}
		delete(f.data, key)
		delete(f.counters, key)
		delete(f.sets, key)
	}
	return redis.NewIntResult(removed, nil)
}

func (f *Fake) SAdd(_ context.Context, key string, members ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]struct{})
		f.sets[key] = set
	}
	var added int64
	for _, m := range members {
		member := stringify(m)
		if _, exists := set[member]; !exists {
			set[member] = struct{}{}
			added++
		}
	}
	return redis.NewIntResult(added, nil)
}

func (f *Fake) SRem(_ context.Context, key string, members ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.sets[key]
	var removed int64
	for _, m := range members {
		member := stringify(m)
		if _, exists := set[member]; exists {
			delete(set, member)
			removed++
		}
	}
	if len(set) == 0 {
		delete(f.sets, key)
	}
	return redis.NewIntResult(removed, nil)
}

func (f *Fake) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make([]string, 0, len(f.sets[key]))
	for member := range f.sets[key] {
		members = append(members, member)
	}
	return redis.NewStringSliceResult(members, nil)
}

// Value returns the raw stored value for key.
func (f *Fake) Value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
