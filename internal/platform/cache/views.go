package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	viewVersionPrefix = "linen:view:version:"
	viewDataPrefix    = "linen:view:data:"
	// InvalidationChannel receives the path of every invalidated view.
	InvalidationChannel = "linen.view.invalidated"
)

// Views caches rendered report views. Each view path has a version counter; bumping
// it orphans every cached payload of that path.
type Views struct {
	client *redis.Client
	ttl    time.Duration
}

// NewViews instantiates the view cache. A nil client disables caching.
func NewViews(client *redis.Client, ttl time.Duration) *Views {
	return &Views{client: client, ttl: ttl}
}

// Invalidate bumps the version of each path and publishes the path on
// InvalidationChannel.
func (v *Views) Invalidate(ctx context.Context, paths ...string) error {
	if v == nil || v.client == nil || len(paths) == 0 {
		return nil
	}
	pipe := v.client.TxPipeline()
	for _, path := range paths {
		pipe.Incr(ctx, viewVersionPrefix+path)
		pipe.Publish(ctx, InvalidationChannel, path)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("platform/cache: invalidate: %w", err)
	}
	return nil
}

// Version returns the current version of a view path, zero when never invalidated.
func (v *Views) Version(ctx context.Context, path string) (int64, error) {
	if v == nil || v.client == nil {
		return 0, nil
	}
	ver, err := v.client.Get(ctx, viewVersionPrefix+path).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// FetchJSON loads the cached payload of a view or populates it using loader. Cache
// errors fall through to the loader.
func (v *Views) FetchJSON(ctx context.Context, path string, variant string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("platform/cache: loader required")
	}
	if v == nil || v.client == nil {
		return decodeFrom(ctx, loader, dest)
	}
	ver, err := v.Version(ctx, path)
	if err != nil {
		return decodeFrom(ctx, loader, dest)
	}
	key := fmt.Sprintf("%s%s:%d", viewDataPrefix, strings.Join([]string{path, variant}, "|"), ver)
	payload, err := v.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_ = v.client.Set(ctx, key, raw, v.ttl).Err()
	return json.Unmarshal(raw, dest)
}

// Subscribe delivers invalidated paths to fn until ctx is done.
func (v *Views) Subscribe(ctx context.Context, fn func(path string)) error {
	if v == nil || v.client == nil {
		return nil
	}
	pubsub := v.client.Subscribe(ctx, InvalidationChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("platform/cache: subscribe: %w", err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fn(msg.Payload)
			}
		}
	}()
	return nil
}

func decodeFrom(ctx context.Context, loader func(context.Context) (any, error), dest any) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
