package redisregistry

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"automl/domain/core"
	"automl/domain/run"
	"automl/internal"
	"automl/internal/errors"
	"automl/ports"
)

const maxPromoteAttempts = 5

// Registry keeps production pointers in Redis so several serving replicas
// can watch one source of truth.
//
// Keys:
//   - "{prefix}:{name}:current"  STRING, JSON RegisteredModel
//   - "{prefix}:{name}:versions" LIST, JSON RegisteredModel per version, oldest first
type Registry struct {
	client    redis.UniversalClient
	keyPrefix string
	logger    *internal.Logger
}

var _ ports.ModelRegistry = (*Registry)(nil)

// New wraps an existing client.
func New(client redis.UniversalClient, keyPrefix string, logger *internal.Logger) *Registry {
	if keyPrefix == "" {
		keyPrefix = "automl:registry"
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Registry{client: client, keyPrefix: keyPrefix, logger: logger}
}

// Dial connects to addr and pings it.
func Dial(ctx context.Context, addr string, db int, logger *internal.Logger) (*Registry, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.DatabaseError(fmt.Sprintf("redis registry at %s unreachable", addr), err)
	}
	return New(client, "", logger), nil
}

func (g *Registry) Close() error { return g.client.Close() }

func (g *Registry) currentKey(name string) string {
	return fmt.Sprintf("%s:%s:current", g.keyPrefix, name)
}

func (g *Registry) versionsKey(name string) string {
	return fmt.Sprintf("%s:%s:versions", g.keyPrefix, name)
}

// RegisterAsProduction moves the pointer with WATCH/MULTI so concurrent
// promotions never skip or duplicate a version number.
func (g *Registry) RegisterAsProduction(ctx context.Context, r run.Run, name string) (run.RegisteredModel, error) {
	if r.ID.IsEmpty() || r.Artifact.IsZero() {
		return run.RegisteredModel{}, errors.InvalidInput("run has no id or artifact to register")
	}

	var result run.RegisteredModel
	promote := func(tx *redis.Tx) error {
		current, err := g.readCurrent(ctx, tx, name)
		if err != nil && !core.IsNotFoundError(err) {
			return err
		}
		if current != nil && current.RunID == r.ID {
			result = *current
			return nil
		}

		next := run.RegisteredModel{
			Name:      name,
			Version:   1,
			RunID:     r.ID,
			Artifact:  r.Artifact,
			UpdatedAt: core.Now(),
		}
		if current != nil {
			next.Version = current.Version + 1
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, g.currentKey(name), payload, 0)
			pipe.RPush(ctx, g.versionsKey(name), payload)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for attempt := 0; attempt < maxPromoteAttempts; attempt++ {
		err := g.client.Watch(ctx, promote, g.currentKey(name))
		if err == nil {
			g.logger.Info("[RedisRegistry] %s -> version %d (run %s)", name, result.Version, result.RunID)
			return result, nil
		}
		if !stderrors.Is(err, redis.TxFailedErr) {
			return run.RegisteredModel{}, errors.DatabaseError("failed to promote model", err)
		}
		g.logger.Debug("[RedisRegistry] Promotion of %s raced, retrying (%d)", name, attempt+1)
	}
	return run.RegisteredModel{}, errors.DatabaseError("failed to promote model", redis.TxFailedErr)
}

func (g *Registry) readCurrent(ctx context.Context, c redis.Cmdable, name string) (*run.RegisteredModel, error) {
	data, err := c.Get(ctx, g.currentKey(name)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w %q", core.ErrRegisteredNotFound, name)
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to read registered model", err)
	}
	var m run.RegisteredModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.DatabaseError("corrupt registered model entry", err)
	}
	return &m, nil
}

// GetRegisteredModel returns the current production pointer.
func (g *Registry) GetRegisteredModel(ctx context.Context, name string) (*run.RegisteredModel, error) {
	return g.readCurrent(ctx, g.client, name)
}

// ListVersions returns every version, newest first.
func (g *Registry) ListVersions(ctx context.Context, name string) ([]run.RegisteredModel, error) {
	values, err := g.client.LRange(ctx, g.versionsKey(name), 0, -1).Result()
	if err != nil {
		return nil, errors.DatabaseError("failed to list versions", err)
	}
	out := make([]run.RegisteredModel, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		var m run.RegisteredModel
		if err := json.Unmarshal([]byte(values[i]), &m); err != nil {
			continue // skip malformed entries
		}
		out = append(out, m)
	}
	return out, nil
}
