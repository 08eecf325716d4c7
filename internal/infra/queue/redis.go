package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
)

// priorityScale разводит приоритет и порядковый номер в одном score sorted set.
const priorityScale = 1e12

// claimScript атомарно снимает первую задачу в статусе QUEUED и переводит её в RUNNING.
var claimScript = redis.NewScript(`
while true do
  local popped = redis.call('ZPOPMIN', KEYS[1])
  if #popped == 0 then
    return false
  end
  local key = ARGV[1] .. popped[1]
  local raw = redis.call('GET', key)
  if raw then
    local job = cjson.decode(raw)
    if job['status'] == 'QUEUED' then
      job['status'] = 'RUNNING'
      job['started_at'] = ARGV[2]
      local encoded = cjson.encode(job)
      redis.call('SET', key, encoded)
      return encoded
    end
  end
end
`)

// transitionScript меняет статус задачи, только если текущий входит в список допустимых.
var transitionScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return redis.error_reply('missing')
end
local job = cjson.decode(raw)
local allowed = false
for i = 4, #ARGV do
  if job['status'] == ARGV[i] then
    allowed = true
  end
end
if not allowed then
  return redis.error_reply('status:' .. job['status'])
end
job['status'] = ARGV[1]
job['finished_at'] = ARGV[2]
if ARGV[3] ~= '' then
  job['last_error'] = ARGV[3]
end
redis.call('SET', KEYS[1], cjson.encode(job))
redis.call('ZREM', KEYS[2], job['id'])
return 1
`)

// RedisJobQueue хранит задачи в Redis: JSON задачи по ключу и sorted set готовых к выполнению.
type RedisJobQueue struct {
	client *redis.Client
	key    string
	clock  domain.Clock
}

var _ domain.JobQueue = (*RedisJobQueue)(nil)

// NewRedisJobQueue создаёт очередь с указанным префиксом ключей.
func NewRedisJobQueue(client *redis.Client, key string, clock domain.Clock) *RedisJobQueue {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &RedisJobQueue{client: client, key: key, clock: clock}
}

func (q *RedisJobQueue) readyKey() string           { return q.key + ":ready" }
func (q *RedisJobQueue) allKey() string             { return q.key + ":all" }
func (q *RedisJobQueue) seqKey() string             { return q.key + ":seq" }
func (q *RedisJobQueue) jobPrefix() string          { return q.key + ":job:" }
func (q *RedisJobQueue) jobKey(id string) string    { return q.jobPrefix() + id }
func (q *RedisJobQueue) launchKey(id string) string { return q.key + ":launch:" + id }

// Enqueue публикует задачу в очередь.
func (q *RedisJobQueue) Enqueue(ctx context.Context, job domain.AutomationJob) (domain.AutomationJob, error) {
	job, err := prepare(job, q.clock.Now())
	if err != nil {
		return domain.AutomationJob{}, err
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return domain.AutomationJob{}, fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	seq, err := q.client.Incr(ctx, q.seqKey()).Result()
	if err != nil {
		metrics.ObserveNetworkRequest("redis", "queue_seq", q.key, start, err)
		return domain.AutomationJob{}, fmt.Errorf("next seq: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.jobKey(job.ID), payload, 0)
		pipe.ZAdd(ctx, q.readyKey(), redis.Z{Score: float64(job.Priority)*priorityScale + float64(seq), Member: job.ID})
		pipe.ZAdd(ctx, q.allKey(), redis.Z{Score: float64(seq), Member: job.ID})
		if job.LaunchID != "" {
			pipe.SAdd(ctx, q.launchKey(job.LaunchID), job.ID)
		}
		return nil
	})
	metrics.ObserveNetworkRequest("redis", "queue_enqueue", q.key, start, err)
	if err != nil {
		return domain.AutomationJob{}, fmt.Errorf("push job: %w", err)
	}
	return job, nil
}

// Claim забирает самую приоритетную задачу.
func (q *RedisJobQueue) Claim(ctx context.Context) (domain.AutomationJob, error) {
	start := time.Now()
	now := q.clock.Now().Format(time.RFC3339Nano)
	raw, err := claimScript.Run(ctx, q.client, []string{q.readyKey()}, q.jobPrefix(), now).Text()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "queue_claim", q.key, start, nil)
		return domain.AutomationJob{}, domain.NotFoundf("no queued jobs")
	}
	metrics.ObserveNetworkRequest("redis", "queue_claim", q.key, start, err)
	if err != nil {
		return domain.AutomationJob{}, fmt.Errorf("claim job: %w", err)
	}
	return decodeJob(raw)
}

// Complete помечает задачу выполненной.
func (q *RedisJobQueue) Complete(ctx context.Context, id string) error {
	return q.transition(ctx, id, domain.JobStatusCompleted, "", domain.JobStatusRunning)
}

// Fail сохраняет причину сбоя. Повтор не выполняется.
func (q *RedisJobQueue) Fail(ctx context.Context, id string, cause string) error {
	return q.transition(ctx, id, domain.JobStatusFailed, cause, domain.JobStatusRunning)
}

// Cancel отменяет задачу в статусе QUEUED или RUNNING.
func (q *RedisJobQueue) Cancel(ctx context.Context, id string) error {
	return q.transition(ctx, id, domain.JobStatusCancelled, "", domain.JobStatusQueued, domain.JobStatusRunning)
}

// CancelByLaunch отменяет все ожидающие задачи запуска.
func (q *RedisJobQueue) CancelByLaunch(ctx context.Context, launchID string) (int, error) {
	ids, err := q.client.SMembers(ctx, q.launchKey(launchID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list launch jobs: %w", err)
	}
	cancelled := 0
	for _, id := range ids {
		err := q.transition(ctx, id, domain.JobStatusCancelled, "", domain.JobStatusQueued)
		switch {
		case err == nil:
			cancelled++
		case errors.Is(err, domain.ErrPreconditionFailed), errors.Is(err, domain.ErrNotFound):
		default:
			return cancelled, err
		}
	}
	return cancelled, nil
}

func (q *RedisJobQueue) transition(ctx context.Context, id string, to domain.JobStatus, cause string, from ...domain.JobStatus) error {
	args := []any{string(to), q.clock.Now().Format(time.RFC3339Nano), cause}
	for _, status := range from {
		args = append(args, string(status))
	}
	start := time.Now()
	err := transitionScript.Run(ctx, q.client, []string{q.jobKey(id), q.readyKey()}, args...).Err()
	metrics.ObserveNetworkRequest("redis", "queue_transition", q.key, start, err)
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case msg == "missing":
		return domain.NotFoundf("job %s", id)
	case strings.HasPrefix(msg, "status:"):
		return domain.Preconditionf("job %s is %s", id, strings.TrimPrefix(msg, "status:"))
	}
	return fmt.Errorf("update job: %w", err)
}

// Get возвращает задачу по идентификатору.
func (q *RedisJobQueue) Get(ctx context.Context, id string) (domain.AutomationJob, error) {
	raw, err := q.client.Get(ctx, q.jobKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.AutomationJob{}, domain.NotFoundf("job %s", id)
	}
	if err != nil {
		return domain.AutomationJob{}, fmt.Errorf("get job: %w", err)
	}
	return decodeJob(raw)
}

// List возвращает задачи в порядке постановки.
func (q *RedisJobQueue) List(ctx context.Context, filter domain.JobFilter) ([]domain.AutomationJob, error) {
	var ids []string
	var err error
	if filter.LaunchID != "" {
		ids, err = q.client.SMembers(ctx, q.launchKey(filter.LaunchID)).Result()
	} else {
		ids, err = q.client.ZRange(ctx, q.allKey(), 0, -1).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, q.jobKey(id))
	}
	values, err := q.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	out := make([]domain.AutomationJob, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		job, err := decodeJob(raw)
		if err != nil {
			return nil, err
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, job)
	}
	sortByEnqueue(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func decodeJob(raw string) (domain.AutomationJob, error) {
	var job domain.AutomationJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return domain.AutomationJob{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}
