// Package idempotency makes side-effecting operations safe to repeat when an update
// is delivered twice.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

const (
	lockTTL      = time.Minute
	pollInterval = 100 * time.Millisecond
)

type Operation func(ctx context.Context) (any, error)

// Result carries the JSON encoded operation response.
type Result struct {
	Response  json.RawMessage
	FromCache bool
}

// Decode unmarshals the stored response into dst.
func (r *Result) Decode(dst any) error {
	if r == nil || len(r.Response) == 0 {
		return nil
	}
	return json.Unmarshal(r.Response, dst)
}

type Manager interface {
	Execute(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fn Operation,
	) (*Result, error)
}

type manager struct {
	store Store
	log   *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store: store,
		log:   log,
	}
}

// Execute runs fn at most once per key within ttl. Failed runs are not recorded so
// the caller may try again.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	for {
		locked, err := m.store.Lock(ctx, key, lockTTL)
		if err != nil {
			return nil, err
		}

		if locked {
			return m.run(ctx, key, ttl, fn)
		}

		record, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}

		if record != nil && record.Status == StatusCompleted {
			m.log.InfoContext(ctx, "idempotent replay", slog.String("key", key))
			return &Result{Response: record.Response, FromCache: true}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (m *manager) run(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	// a record written between the failed lock attempt of another caller and this run
	if record, err := m.store.Get(ctx, key); err == nil && record != nil && record.Status == StatusCompleted {
		return &Result{Response: record.Response, FromCache: true}, nil
	}

	result, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	responseBytes, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, key, &Record{
		Status:   StatusCompleted,
		Response: responseBytes,
	}, ttl); err != nil {
		m.log.Warn("failed to persist idempotency record", slog.String("key", key), slog.Any("error", err))
	}

	return &Result{
		Response:  responseBytes,
		FromCache: false,
	}, nil
}
