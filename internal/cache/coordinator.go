package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"revline/internal/realtime"
)

// Coordinator serves reads through the cache and drops exactly the keys a change affects.
// Cache failures never fail a read: the loader result is returned and the error logged.
type Coordinator struct {
	cache Cache
	ttl   time.Duration
	// epoch advances on every pattern invalidation; loads that span one are not stored.
	epoch atomic.Int64
}

func NewCoordinator(c Cache, ttl time.Duration) *Coordinator {
	return &Coordinator{cache: c, ttl: ttl}
}

// Fetch returns the cached value at key, or loads, stores and returns it.
// A value loaded across an Invalidate of key is returned but not stored.
func Fetch[T any](ctx context.Context, c *Coordinator, key string, loader func(context.Context) (T, error)) (T, error) {
	var value T

	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal([]byte(raw), &value); jsonErr == nil {
			return value, nil
		}
		log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	case !errors.Is(err, ErrMiss):
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	epoch := c.epoch.Load()
	gen, genErr := c.cache.Generation(ctx, key)
	if genErr != nil {
		log.Warn().Err(genErr).Str("key", key).Msg("cache generation read failed")
	}

	value, err = loader(ctx)
	if err != nil {
		return value, err
	}
	if genErr == nil {
		c.store(ctx, key, value, gen, epoch)
	}
	return value, nil
}

func (c *Coordinator) store(ctx context.Context, key string, value any, gen, epoch int64) {
	if c.epoch.Load() != epoch {
		log.Debug().Str("key", key).Msg("cache flushed during load, not cached")
		return
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	stored, err := c.cache.SetIfGeneration(ctx, key, string(encoded), c.ttl, gen)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		return
	}
	if !stored {
		log.Debug().Str("key", key).Msg("key invalidated during load, not cached")
	}
}

// FetchMany resolves every id through the cache under keyOf(id) and loads all misses
// with a single loader call.
func FetchMany[T any](
	ctx context.Context,
	c *Coordinator,
	ids []string,
	keyOf func(id string) string,
	loader func(ctx context.Context, missing []string) (map[string]T, error),
) (map[string]T, error) {
	out := make(map[string]T, len(ids))
	seen := make(map[string]struct{}, len(ids))
	gens := make(map[string]int64, len(ids))
	epoch := c.epoch.Load()
	var missing []string

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		raw, err := c.cache.Get(ctx, keyOf(id))
		if err == nil {
			var value T
			if jsonErr := json.Unmarshal([]byte(raw), &value); jsonErr == nil {
				out[id] = value
				continue
			}
		} else if !errors.Is(err, ErrMiss) {
			log.Warn().Err(err).Str("key", keyOf(id)).Msg("cache read failed")
		}
		if gen, err := c.cache.Generation(ctx, keyOf(id)); err == nil {
			gens[id] = gen
		} else {
			log.Warn().Err(err).Str("key", keyOf(id)).Msg("cache generation read failed")
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := loader(ctx, missing)
	if err != nil {
		return nil, err
	}

	for _, id := range missing {
		value := loaded[id]
		out[id] = value
		if gen, ok := gens[id]; ok {
			c.store(ctx, keyOf(id), value, gen, epoch)
		}
	}
	return out, nil
}

// Invalidate drops keys. Dropping an absent key is not an error.
func (c *Coordinator) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := c.cache.Del(ctx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	return nil
}

// InvalidateMatching drops every stored key matching one of patterns. Loads in flight
// when it runs are not stored.
func (c *Coordinator) InvalidateMatching(ctx context.Context, patterns ...string) error {
	c.epoch.Add(1)
	for _, pattern := range patterns {
		keys, err := c.cache.Keys(ctx, pattern)
		if err != nil {
			log.Warn().Err(err).Str("pattern", pattern).Msg("cache key scan failed")
			return fmt.Errorf("cache: scan %s: %w", pattern, err)
		}
		if err := c.Invalidate(ctx, keys...); err != nil {
			return err
		}
	}
	return nil
}

// ParticipantLookup resolves every member of a conversation, archived or not.
type ParticipantLookup interface {
	ParticipantIDs(ctx context.Context, conversationID string) ([]string, error)
}

// HandleMessageChange applies the message-change rule for the conversation of event.
// Reprocessing the same event drops the same keys again. A resync of the whole table
// drops every message-derived key, since the lost events could touch any conversation.
func (c *Coordinator) HandleMessageChange(ctx context.Context, lookup ParticipantLookup, event realtime.ChangeEvent) error {
	if event.Table != realtime.TableMessages {
		return nil
	}
	var row realtime.MessageRow
	if err := event.Decode(&row); err != nil {
		return fmt.Errorf("cache: decode message row: %w", err)
	}
	if row.ConversationID == "" {
		if event.Operation == realtime.OperationResync {
			return c.InvalidateMatching(ctx, MessageKeyPatterns()...)
		}
		return nil
	}

	participants, err := lookup.ParticipantIDs(ctx, row.ConversationID)
	if err != nil {
		return err
	}
	return c.Invalidate(ctx, MessageChangeKeys(row.ConversationID, participants)...)
}

// StartInvalidator listens to every message change on feed so caches converge across nodes.
func (c *Coordinator) StartInvalidator(ctx context.Context, feed realtime.Feed, lookup ParticipantLookup) (*realtime.Listener, error) {
	return realtime.Listen(ctx, feed, realtime.TableScope(realtime.TableMessages), func(ctx context.Context, event realtime.ChangeEvent) error {
		return c.HandleMessageChange(ctx, lookup, event)
	})
}
