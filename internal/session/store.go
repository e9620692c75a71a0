// Package session provides the per-user workflow data store backing the
// dialogue engine. Every field lives under its own redis key so fields
// expire independently; an absent field is a normal outcome, not an error.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Store persists session fields to redis with field-level TTLs.
type Store struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewStore builds a store around the provided redis client.
func NewStore(client *redis.Client, tracer trace.Tracer) *Store {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("alice.internal.session")
	}
	return &Store{
		redis:  client,
		tracer: tracer,
	}
}

func fieldKey(userID, field string) string {
	return fmt.Sprintf("user:%s:session:%s", userID, field)
}

// Set stores a JSON-encoded value for the field with its own TTL.
func (s *Store) Set(ctx context.Context, userID, field string, value any, ttl time.Duration) error {
	ctx, span := s.tracer.Start(ctx, "session.set")
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal field %s: %w", field, err)
	}
	if err := s.redis.Set(ctx, fieldKey(userID, field), data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist field %s: %w", field, err)
	}
	return nil
}

// Get decodes the field into dest. The second return reports whether the
// field was present; expiry and never-written are indistinguishable.
func (s *Store) Get(ctx context.Context, userID, field string, dest any) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	data, err := s.redis.Get(ctx, fieldKey(userID, field)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("session: failed to load field %s: %w", field, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("session: failed to decode field %s: %w", field, err)
	}
	return true, nil
}

// GetString is a convenience accessor for plain string fields.
func (s *Store) GetString(ctx context.Context, userID, field string) (string, bool, error) {
	var v string
	ok, err := s.Get(ctx, userID, field, &v)
	return v, ok, err
}

// Delete removes the given fields; missing fields are ignored.
func (s *Store) Delete(ctx context.Context, userID string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "session.delete")
	defer span.End()

	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, fieldKey(userID, f))
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to delete fields: %w", err)
	}
	return nil
}

// Clear drops every session field for the user.
func (s *Store) Clear(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "session.clear")
	defer span.End()

	pattern := fmt.Sprintf("user:%s:session:*", userID)
	iter := s.redis.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to scan session keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to clear session: %w", err)
	}
	return nil
}

// Apply executes a patch produced by a dialogue turn in order.
func (s *Store) Apply(ctx context.Context, userID string, patch Patch) error {
	for _, op := range patch {
		if op.Remove {
			if err := s.Delete(ctx, userID, op.Field); err != nil {
				return err
			}
			continue
		}
		if err := s.Set(ctx, userID, op.Field, op.Value, op.TTL); err != nil {
			return err
		}
	}
	return nil
}
