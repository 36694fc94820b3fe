package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	onlineKeyPrefix = "presence:online:"
	channelPrefix   = "presence:events:"
)

// Redis implements Presence over a shared Redis so multiple API instances see
// the same liveness and any instance can reach a member connected elsewhere.
// Realtime gateways SETEX the online key as a heartbeat and SUBSCRIBE to the
// member's channel.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Redis{client: client, ttl: ttl}
}

// Heartbeat marks the account online for the TTL window. Called by the
// realtime gateway while a connection is open.
func (r *Redis) Heartbeat(ctx context.Context, accountID uuid.UUID) error {
	return r.client.Set(ctx, onlineKey(accountID), "1", r.ttl).Err()
}

// Disconnect clears the online flag eagerly instead of waiting for TTL expiry.
func (r *Redis) Disconnect(ctx context.Context, accountID uuid.UUID) error {
	return r.client.Del(ctx, onlineKey(accountID)).Err()
}

func (r *Redis) IsOnline(ctx context.Context, accountID uuid.UUID) bool {
	n, err := r.client.Exists(ctx, onlineKey(accountID)).Result()
	if err != nil {
		zap.L().Warn("presence online check failed", zap.Error(err))
		return false
	}
	return n > 0
}

// Push publishes the event on the member's channel. Zero subscribers means
// the member went offline between the check and the publish; that is fine.
func (r *Redis) Push(ctx context.Context, accountID uuid.UUID, event Event) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		zap.L().Warn("presence event marshal failed", zap.Error(err))
		return false
	}
	receivers, err := r.client.Publish(ctx, eventChannel(accountID), payload).Result()
	if err != nil {
		zap.L().Warn("presence publish failed", zap.Error(err))
		return false
	}
	return receivers > 0
}

// Subscribe returns the pub/sub stream for the account's events. Used by the
// realtime gateway that owns the member's socket.
func (r *Redis) Subscribe(ctx context.Context, accountID uuid.UUID) *redis.PubSub {
	return r.client.Subscribe(ctx, eventChannel(accountID))
}

// Stream subscribes to the account's channel, keeps the online key alive with
// periodic heartbeats, and decodes published payloads into Events. The stop
// function closes the subscription and clears the online flag.
func (r *Redis) Stream(ctx context.Context, accountID uuid.UUID) (<-chan Event, func(), error) {
	if err := r.Heartbeat(ctx, accountID); err != nil {
		return nil, nil, fmt.Errorf("presence heartbeat: %w", err)
	}
	sub := r.client.Subscribe(ctx, eventChannel(accountID))

	out := make(chan Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		ticker := time.NewTicker(r.ttl / 2)
		defer ticker.Stop()
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := r.Heartbeat(ctx, accountID); err != nil {
					zap.L().Warn("presence heartbeat failed", zap.Error(err))
				}
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					zap.L().Warn("presence event decode failed", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				default:
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
			_ = r.Disconnect(context.Background(), accountID)
		})
	}
	return out, stop, nil
}

func onlineKey(id uuid.UUID) string {
	return fmt.Sprintf("%s%s", onlineKeyPrefix, id)
}

func eventChannel(id uuid.UUID) string {
	return fmt.Sprintf("%s%s", channelPrefix, id)
}
