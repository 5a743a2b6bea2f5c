package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"proxywarden/internal/domain"
)

const (
	DefaultKeyPrefix = "proxywarden:"
	mirrorChunkSize  = 1000
)

// PoolMirror publishes every saved pool to Redis as a set so other
// processes can consume it without reading the data directory.
type PoolMirror struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

func NewPoolMirror(client redis.Cmdable, prefix string) *PoolMirror {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &PoolMirror{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (m *PoolMirror) AliveKey(t domain.ProxyType) string {
	return m.prefix + "alive:" + t.String()
}

func (m *PoolMirror) UpdatedAtKey(t domain.ProxyType) string {
	return m.AliveKey(t) + ":updated_at"
}

// MirrorPool replaces the alive set of t with proxies and stamps the update
// time, in one transaction.
func (m *PoolMirror) MirrorPool(ctx context.Context, t domain.ProxyType, proxies []string) error {
	key := m.AliveKey(t)
	stamp := m.now().UTC().Format(time.RFC3339)

	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		for _, chunk := range chunkMembers(proxies, mirrorChunkSize) {
			pipe.SAdd(ctx, key, chunk...)
		}
		pipe.Set(ctx, m.UpdatedAtKey(t), stamp, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("runtime: mirror %s pool: %w", t, err)
	}
	return nil
}

func chunkMembers(proxies []string, size int) [][]any {
	var chunks [][]any
	for start := 0; start < len(proxies); start += size {
		end := start + size
		if end > len(proxies) {
			end = len(proxies)
		}
		chunk := make([]any, 0, end-start)
		for _, proxy := range proxies[start:end] {
			chunk = append(chunk, proxy)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}
