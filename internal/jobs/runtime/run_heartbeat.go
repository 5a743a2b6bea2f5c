package runtime

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultHeartbeatTTL      = 30 * time.Second
)

// RunHeartbeatKey is the key refreshed while run runID is in progress.
func RunHeartbeatKey(prefix, runID string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + "run:" + runID
}

func heartbeatValue() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

func StartRunHeartbeat(ctx context.Context, client redis.Cmdable, key string, interval, ttl time.Duration) {
	value := heartbeatValue()

	sendHeartbeat := func() {
		if err := client.SetEx(ctx, key, value, ttl).Err(); err != nil && ctx.Err() == nil {
			log.Error("Failed to update run heartbeat", "key", key, "error", err)
		}
	}

	sendHeartbeat()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sendHeartbeat()
		}
	}
}

// LaunchRunHeartbeat refreshes the heartbeat of runID in the background. The
// returned function stops it and deletes the key.
func LaunchRunHeartbeat(parent context.Context, client redis.Cmdable, prefix, runID string) func() {
	ctx, cancel := context.WithCancel(parent)
	key := RunHeartbeatKey(prefix, runID)
	done := make(chan struct{})

	go func() {
		defer close(done)
		StartRunHeartbeat(ctx, client, key, DefaultHeartbeatInterval, DefaultHeartbeatTTL)
	}()

	return func() {
		cancel()
		<-done

		cleanupCtx, cleanupCancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
		defer cleanupCancel()
		if err := client.Del(cleanupCtx, key).Err(); err != nil {
			log.Warn("Failed to clear run heartbeat", "key", key, "error", err)
		}
	}
}

// CountActiveRuns returns how many runs currently hold a heartbeat.
func CountActiveRuns(ctx context.Context, client redis.Cmdable, prefix string) (int, error) {
	keys, err := client.Keys(ctx, RunHeartbeatKey(prefix, "*")).Result()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
