package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vigilo/vigilo-backend/internal/config"
	"github.com/vigilo/vigilo-backend/internal/model"
)

// ErrCacheMiss signals that a key is absent from the cache. Callers fall
// back to the durable store and self-heal the cache.
var ErrCacheMiss = errors.New("cache miss")

// AttemptCache holds the hot attempt state: the autosaved answers mirror,
// the attempt start timestamp, the exam duration, and the expiry queue the
// live sweep worker drains.
type AttemptCache interface {
	MirrorAnswers(ctx context.Context, examID string, candidateID int, answers model.AnswerMap, ttl time.Duration) error
	Answers(ctx context.Context, examID string, candidateID int) (map[string]string, error)
	SetAttemptStart(ctx context.Context, examID string, candidateID int, start time.Time, ttl time.Duration) error
	AttemptStart(ctx context.Context, examID string, candidateID int) (time.Time, error)
	SetExamDuration(ctx context.Context, examID string, minutes int) error
	ExamDuration(ctx context.Context, examID string) (int, error)
	Clear(ctx context.Context, examID string, candidateID int) error
	QueueLiveExpiry(ctx context.Context, ids []uuid.UUID) error
}

// RedisAttemptCache implements AttemptCache on top of redis.
type RedisAttemptCache struct {
	client *redis.Client
}

// NewRedisAttemptCache creates a new RedisAttemptCache.
func NewRedisAttemptCache(client *redis.Client) *RedisAttemptCache {
	return &RedisAttemptCache{client: client}
}

// MirrorAnswers writes the answer map into a hash keyed per question, each
// value JSON encoded, and refreshes the key's TTL.
func (c *RedisAttemptCache) MirrorAnswers(ctx context.Context, examID string, candidateID int, answers model.AnswerMap, ttl time.Duration) error {
	key := config.CacheKey.CandidateAnswersKey(examID, candidateID)

	fields := make(map[string]string, len(answers))
	for qid, value := range answers {
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		fields[qid] = string(raw)
	}
	if len(fields) > 0 {
		if err := c.client.HSet(ctx, key, fields).Err(); err != nil {
			return err
		}
	}
	return c.client.Expire(ctx, key, ttl).Err()
}

// Answers returns the mirrored answer hash, question id to JSON value.
func (c *RedisAttemptCache) Answers(ctx context.Context, examID string, candidateID int) (map[string]string, error) {
	return c.client.HGetAll(ctx, config.CacheKey.CandidateAnswersKey(examID, candidateID)).Result()
}

// SetAttemptStart records the attempt start as a unix timestamp.
func (c *RedisAttemptCache) SetAttemptStart(ctx context.Context, examID string, candidateID int, start time.Time, ttl time.Duration) error {
	key := config.CacheKey.AttemptStartKey(examID, candidateID)
	return c.client.Set(ctx, key, start.Unix(), ttl).Err()
}

// AttemptStart returns the cached attempt start time, or ErrCacheMiss.
func (c *RedisAttemptCache) AttemptStart(ctx context.Context, examID string, candidateID int) (time.Time, error) {
	raw, err := c.client.Get(ctx, config.CacheKey.AttemptStartKey(examID, candidateID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, ErrCacheMiss
	}
	if err != nil {
		return time.Time{}, err
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0), nil
}

// SetExamDuration caches the exam duration in minutes. Durations are stable
// once published, so the key carries no TTL.
func (c *RedisAttemptCache) SetExamDuration(ctx context.Context, examID string, minutes int) error {
	return c.client.Set(ctx, config.CacheKey.ExamDurationKey(examID), minutes, 0).Err()
}

// ExamDuration returns the cached exam duration in minutes, or ErrCacheMiss.
func (c *RedisAttemptCache) ExamDuration(ctx context.Context, examID string) (int, error) {
	minutes, err := c.client.Get(ctx, config.CacheKey.ExamDurationKey(examID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, ErrCacheMiss
	}
	return minutes, err
}

// Clear drops the attempt's answer mirror and start timestamp.
func (c *RedisAttemptCache) Clear(ctx context.Context, examID string, candidateID int) error {
	return c.client.Del(ctx,
		config.CacheKey.CandidateAnswersKey(examID, candidateID),
		config.CacheKey.AttemptStartKey(examID, candidateID),
	).Err()
}

// QueueLiveExpiry pushes attempt ids onto the expiry queue for the live
// sweep worker.
func (c *RedisAttemptCache) QueueLiveExpiry(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	return c.client.RPush(ctx, config.WorkerKey.ExpireLiveQueue, values...).Err()
}
