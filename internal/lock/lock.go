/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package redlock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockHeld is returned by Acquire when another holder owns the key.
	ErrLockHeld = errors.New("lock is already held")
	// ErrNotHolder means the key expired or belongs to someone else.
	ErrNotHolder = errors.New("lock expired or held by another owner")
)

const (
	releaseScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	extendScript  = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end"
)

// RunKey is the marker key guarding a reconciliation job against overlapping runs.
func RunKey(job string) string {
	return "payrecon:run-in-progress:" + job
}

// Locker is a single-key marker with expiry. The value identifies the owner so
// only the owner can extend or release it.
type Locker struct {
	client redis.UniversalClient
	key    string
	value  string
}

func NewLocker(client redis.UniversalClient, key, value string) *Locker {
	return &Locker{
		client: client,
		key:    key,
		value:  value,
	}
}

func (l *Locker) Key() string {
	return l.key
}

// Acquire sets the marker if absent. The marker expires after ttl unless extended.
func (l *Locker) Acquire(ctx context.Context, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, l.key, l.value, ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLockHeld, l.key)
	}
	return nil
}

func (l *Locker) Release(ctx context.Context) error {
	result, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	if result == int64(0) {
		return fmt.Errorf("release %s: %w", l.key, ErrNotHolder)
	}
	return nil
}

// Extend resets the marker's expiry to ttl from now.
func (l *Locker) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.value, strconv.FormatInt(ttl.Milliseconds(), 10)).Result()
	if err != nil {
		return fmt.Errorf("extend %s: %w", l.key, err)
	}
	if result == int64(0) {
		return fmt.Errorf("extend %s: %w", l.key, ErrNotHolder)
	}
	return nil
}

// Holder returns the current owner of the key, or "" when the key is free.
func (l *Locker) Holder(ctx context.Context) (string, error) {
	value, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}
