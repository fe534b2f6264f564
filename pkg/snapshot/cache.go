package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ruslano69/mssqldialect/pkg/core/schema"
)

const keyPrefix = "mssqldialect:schema:"

// ErrCacheMiss is returned by Get when no snapshot is stored under a key.
var ErrCacheMiss = errors.New("snapshot: cache miss")

// Event is published when a stored snapshot's fingerprint changes.
//
// Redis keys for a cache key k:
//
//	SET  mssqldialect:schema:<k>              <payload>      EX <ttl>
//	SET  mssqldialect:schema:<k>:fingerprint  <hex>          EX <ttl>
//	PUB  mssqldialect:schema:<k>              <Event JSON>
type Event struct {
	Key         string    `json:"key"`
	Database    string    `json:"database"`
	Fingerprint string    `json:"fingerprint"`
	Previous    string    `json:"previous,omitempty"`
	StoredAt    time.Time `json:"stored_at"`
}

// CacheOptions configure NewCache.
type CacheOptions struct {
	// TTL of stored snapshots; zero keeps them until overwritten.
	TTL time.Duration

	// Level is the zstd level, see NewCodec.
	Level int

	// Logger defaults to zerolog.Nop().
	Logger *zerolog.Logger
}

// Cache keeps encoded snapshots in Redis.
type Cache struct {
	rdb   *redis.Client
	codec *Codec
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCache creates a cache over rdb. The caller keeps ownership of rdb.
func NewCache(rdb *redis.Client, opts CacheOptions) (*Cache, error) {
	codec, err := NewCodec(opts.Level)
	if err != nil {
		return nil, err
	}
	c := &Cache{rdb: rdb, codec: codec, ttl: opts.TTL, log: zerolog.Nop()}
	if opts.Logger != nil {
		c.log = *opts.Logger
	}
	return c, nil
}

// Channel is the pub/sub channel change events for key are sent to.
func Channel(key string) string {
	return keyPrefix + key
}

func fingerprintKey(key string) string {
	return keyPrefix + key + ":fingerprint"
}

func formatFingerprint(fp uint64) string {
	return strconv.FormatUint(fp, 16)
}

// Put stores d under key and reports whether its fingerprint differs from
// the stored one. A change, including the first store, is published on
// Channel(key).
func (c *Cache) Put(ctx context.Context, key string, d *schema.DatabaseSchema) (bool, error) {
	payload, fp, err := c.codec.Encode(d)
	if err != nil {
		return false, err
	}
	current := formatFingerprint(fp)

	previous, err := c.rdb.Get(ctx, fingerprintKey(key)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("redis GET failed: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+key, payload, c.ttl)
		pipe.Set(ctx, fingerprintKey(key), current, c.ttl)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis SET failed: %w", err)
	}

	c.log.Debug().
		Str("key", key).
		Str("fingerprint", current).
		Int("bytes", len(payload)).
		Msg("snapshot stored")

	if previous == current {
		return false, nil
	}

	event, err := json.Marshal(Event{
		Key:         key,
		Database:    d.Name,
		Fingerprint: current,
		Previous:    previous,
		StoredAt:    time.Now().UTC(),
	})
	if err != nil {
		return true, fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := c.rdb.Publish(ctx, Channel(key), event).Err(); err != nil {
		return true, fmt.Errorf("redis PUBLISH failed: %w", err)
	}
	c.log.Info().Str("key", key).Str("previous", previous).Str("fingerprint", current).Msg("schema changed")
	return true, nil
}

// Get loads the snapshot stored under key.
func (c *Cache) Get(ctx context.Context, key string) (*schema.DatabaseSchema, error) {
	payload, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}
	d, err := c.codec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", key, err)
	}
	return d, nil
}

// Fingerprint returns the stored fingerprint of key without loading the
// snapshot.
func (c *Cache) Fingerprint(ctx context.Context, key string) (uint64, error) {
	s, err := c.rdb.Get(ctx, fingerprintKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrCacheMiss
	}
	if err != nil {
		return 0, fmt.Errorf("redis GET failed: %w", err)
	}
	fp, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("snapshot %s: bad fingerprint %q: %w", key, s, err)
	}
	return fp, nil
}

// Delete removes key and its fingerprint.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, keyPrefix+key, fingerprintKey(key)).Err(); err != nil {
		return fmt.Errorf("redis DEL failed: %w", err)
	}
	return nil
}

// Subscribe delivers change events for key until ctx is done. The
// returned channel is closed when the subscription ends.
func (c *Cache) Subscribe(ctx context.Context, key string) (<-chan Event, error) {
	sub := c.rdb.Subscribe(ctx, Channel(key))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis SUBSCRIBE failed: %w", err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					c.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases the codec. The Redis client is left open.
func (c *Cache) Close() {
	c.codec.Close()
}
