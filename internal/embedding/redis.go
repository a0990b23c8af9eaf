package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gomodule/redigo/redis"
)

// DefaultRedisTTL is how long a fingerprint stays in Redis.
const DefaultRedisTTL = 7 * 24 * time.Hour

// RedisCache shares fingerprints between worker processes through Redis.
// Vectors are stored as little-endian float32 bytes.
type RedisCache struct {
	pool *redis.Pool
	ttl  time.Duration
}

// NewRedisCache creates a cache for the Redis server at url
// (redis://[:password@]host:port[/db]). A non-positive ttl selects DefaultRedisTTL.
func NewRedisCache(url string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisCache{
		pool: &redis.Pool{
			MaxIdle:     4,
			IdleTimeout: 5 * time.Minute,
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialURLContext(ctx, url)
			},
		},
		ttl: ttl,
	}
}

// Get reads the vector stored under key.
func (r *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", key))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	vec, err := decodeVector(data)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Put stores vec under key with the cache TTL.
func (r *RedisCache) Put(ctx context.Context, key string, vec []float32) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("SET", key, encodeVector(vec), "EX", int(r.ttl.Seconds())); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases pooled connections.
func (r *RedisCache) Close() error {
	return r.pool.Close()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector: %d bytes", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, nil
}
