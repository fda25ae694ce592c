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

package redis_db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Redis wraps the client shared by the run markers and the asynq queues.
type Redis struct {
	options *redis.Options
	client  redis.UniversalClient
}

// ParseRedisURL accepts plain host:port addresses as well as redis:// and
// rediss:// URLs, including password-only credentials.
func ParseRedisURL(rawURL string, skipTLSVerify bool) (*redis.Options, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	if !strings.Contains(rawURL, "://") {
		return &redis.Options{Addr: rawURL}, nil
	}

	// redis://secret@host:6379 carries a password with no username.
	if rest, ok := strings.CutPrefix(rawURL, "redis://"); ok {
		if creds, host, found := strings.Cut(rest, "@"); found && !strings.Contains(creds, ":") {
			rawURL = fmt.Sprintf("redis://:%s@%s", creds, host)
		}
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	if opts.TLSConfig != nil && skipTLSVerify {
		opts.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true,
		}
	}
	return opts, nil
}

// NewRedisClient connects to a single Redis instance and verifies it with a ping.
func NewRedisClient(dns string, skipTLSVerify bool) (*Redis, error) {
	opts, err := ParseRedisURL(dns, skipTLSVerify)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{options: opts, client: client}, nil
}

func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

// AsynqOpt returns connection options for asynq pointing at the same instance.
func (r *Redis) AsynqOpt() asynq.RedisClientOpt {
	return AsynqOpt(r.options)
}

func AsynqOpt(opts *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
}
