package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const arrayLengthField = "length"

// Row is a cached table row. Every value is stored as a string.
type Row map[string]string

// Value returns the field as a float64 when it parses as a number, the raw
// string otherwise, and nil when the field is absent.
func (r Row) Value(field string) any {
	v, ok := r[field]
	if !ok {
		return nil
	}
	if v == "" {
		return v
	}
	if n, ok := parseNumber(v); ok {
		return n
	}
	return v
}

func parseNumber(v string) (float64, bool) {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func (r Row) String(field string) string {
	return r[field]
}

func (r Row) Bool(field string) bool {
	b, _ := strconv.ParseBool(r[field])
	return b
}

func (r Row) Time(field string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, r[field])
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatTime is the inverse of Row.Time.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Store is a hash-based cache. A Store built with a nil client does nothing
// and reports every read as a miss.
type Store struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
}

func NewStore(client *redis.Client, log logrus.FieldLogger) *Store {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 100,
		Interval:    5 * time.Second,
		Timeout:     3 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("cache circuit breaker changed state")
		},
	})
	return &Store{client: client, breaker: cb}
}

func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// Key builds "{namespace}:{sub}:{sha256hex(rowKey)}".
func Key(namespace, sub, rowKey string) string {
	sum := sha256.Sum256([]byte(rowKey))
	return namespace + ":" + sub + ":" + hex.EncodeToString(sum[:])
}

func (s *Store) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// SetTableRow replaces the row under the key and applies ttl when positive.
func (s *Store) SetTableRow(ctx context.Context, namespace, sub, rowKey string, row Row, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}

	values := make(map[string]any, len(row))
	for k, v := range row {
		values[k] = v
	}
	return s.write(ctx, Key(namespace, sub, rowKey), values, ttl)
}

// GetTableRow returns nil, nil on a miss.
func (s *Store) GetTableRow(ctx context.Context, namespace, sub, rowKey string) (Row, error) {
	if !s.Enabled() {
		return nil, nil
	}

	data, err := s.read(ctx, Key(namespace, sub, rowKey))
	if err != nil || len(data) == 0 {
		return nil, err
	}
	return Row(data), nil
}

func (s *Store) DeleteTableRow(ctx context.Context, namespace, sub, rowKey string) error {
	if !s.Enabled() {
		return nil
	}

	key := Key(namespace, sub, rowKey)
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, key).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache key %s: %w", namespace, err)
	}
	return nil
}

// SetArray stores items as a hash with a "length" field and one field per
// index. Maps, slices and structs are JSON-encoded.
func (s *Store) SetArray(ctx context.Context, namespace, sub, rowKey string, items []any, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}

	values := make(map[string]any, len(items)+1)
	values[arrayLengthField] = strconv.Itoa(len(items))
	for i, item := range items {
		encoded, err := encodeArrayItem(item)
		if err != nil {
			return err
		}
		values[strconv.Itoa(i)] = encoded
	}
	return s.write(ctx, Key(namespace, sub, rowKey), values, ttl)
}

// GetArray returns nil, nil on a miss. Elements decode as JSON first, then
// as a number, then as a boolean, and otherwise stay strings.
func (s *Store) GetArray(ctx context.Context, namespace, sub, rowKey string) ([]any, error) {
	if !s.Enabled() {
		return nil, nil
	}

	data, err := s.read(ctx, Key(namespace, sub, rowKey))
	if err != nil || len(data) == 0 {
		return nil, err
	}

	length, err := strconv.Atoi(data[arrayLengthField])
	if err != nil || length < 0 || length > len(data)-1 {
		// Corrupt entry: treat as a miss so the caller reloads from the database.
		return nil, nil
	}
	out := make([]any, length)
	for i := 0; i < length; i++ {
		out[i] = decodeArrayItem(data[strconv.Itoa(i)])
	}
	return out, nil
}

func (s *Store) DeleteArray(ctx context.Context, namespace, sub, rowKey string) error {
	return s.DeleteTableRow(ctx, namespace, sub, rowKey)
}

func (s *Store) write(ctx context.Context, key string, values map[string]any, ttl time.Duration) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(values) > 0 {
				pipe.HSet(ctx, key, values)
			}
			if ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to write cache key: %w", err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, key string) (map[string]string, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		data, err := s.client.HGetAll(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return map[string]string{}, nil
		}
		return data, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cache key: %w", err)
	}
	return res.(map[string]string), nil
}

func encodeArrayItem(item any) (string, error) {
	switch v := item.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case nil:
		return "null", nil
	}

	b, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache array item: %w", err)
	}
	return string(b), nil
}

func decodeArrayItem(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	if raw != "" {
		if n, ok := parseNumber(raw); ok {
			return n
		}
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}
