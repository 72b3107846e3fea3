package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/codeclinic/codeclinic/pkg/job"
)

const (
	keyJobs        = "scan:jobs"
	keyProgress    = "scan:progress"
	keyResults     = "scan:results:" // + scan id
	channelUpdates = "scan:updates"
)

// Redis is a Store backed by Redis hashes. Job records live as JSON
// values in the scan:jobs hash, a denormalized progress snapshot in
// scan:progress, and each result in its own scan:results:<id> hash.
// Events go out on the scan:updates pub/sub channel.
type Redis struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, log zerolog.Logger) *Redis {
	return &Redis{rdb: rdb, log: log.With().Str("component", "jobstore").Logger()}
}

// progressRow is the snapshot kept in the scan:progress hash so status
// pollers do not have to deserialize the whole job.
type progressRow struct {
	Status    job.Status `json:"status"`
	Progress  int        `json:"progress"`
	Phase     string     `json:"phase,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (s *Redis) Create(ctx context.Context, j *job.Job) error {
	raw, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("jobstore: marshal job: %w", err)
	}
	ok, err := s.rdb.HSetNX(ctx, keyJobs, j.ID, raw).Result()
	if err != nil {
		return fmt.Errorf("jobstore: create: %w", err)
	}
	if !ok {
		return fmt.Errorf("jobstore: job %s already exists", j.ID)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, id string) (*job.Job, error) {
	raw, err := s.rdb.HGet(ctx, keyJobs, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: get: %w", err)
	}
	var j job.Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("jobstore: unmarshal job %s: %w", id, err)
	}
	return &j, nil
}

func (s *Redis) SetStatus(ctx context.Context, id string, status job.Status, errMsg string) error {
	j, err := s.updateJob(ctx, id, func(j *job.Job) error {
		return applyStatus(j, status, errMsg)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, j)
	return nil
}

func (s *Redis) SetProgress(ctx context.Context, id string, progress int, phase string) error {
	j, err := s.updateJob(ctx, id, func(j *job.Job) error {
		return applyProgress(j, progress, phase)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, j)
	return nil
}

func (s *Redis) SetPages(ctx context.Context, id string, pages []string) error {
	_, err := s.updateJob(ctx, id, func(j *job.Job) error {
		j.Pages = append([]string(nil), pages...)
		return nil
	})
	return err
}

func (s *Redis) SaveResult(ctx context.Context, r *job.Result) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("jobstore: marshal result: %w", err)
	}
	if err := s.rdb.HSet(ctx, keyResults+r.ScanID, "data", raw).Err(); err != nil {
		return fmt.Errorf("jobstore: save result: %w", err)
	}
	return nil
}

func (s *Redis) GetResult(ctx context.Context, id string) (*job.Result, error) {
	raw, err := s.rdb.HGet(ctx, keyResults+id, "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: get result: %w", err)
	}
	var r job.Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("jobstore: unmarshal result %s: %w", id, err)
	}
	return &r, nil
}

func (s *Redis) Subscribe(ctx context.Context) (<-chan Event, error) {
	ps := s.rdb.Subscribe(ctx, channelUpdates)
	// Force the subscription onto the wire before returning so callers
	// do not miss events published right after Subscribe.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("jobstore: subscribe: %w", err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ps.Channel():
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.log.Warn().Err(err).Msg("dropping malformed scan update")
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

func (s *Redis) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	all, err := s.rdb.HGetAll(ctx, keyJobs).Result()
	if err != nil {
		return 0, fmt.Errorf("jobstore: cleanup: %w", err)
	}
	cutoff := time.Now().UTC().Add(-maxAge)

	removed := 0
	for id, raw := range all {
		var j job.Job
		if err := json.Unmarshal([]byte(raw), &j); err != nil {
			continue
		}
		if !j.Status.IsTerminal() || j.CompletedAt == nil || j.CompletedAt.After(cutoff) {
			continue
		}
		pipe := s.rdb.TxPipeline()
		pipe.HDel(ctx, keyJobs, id)
		pipe.HDel(ctx, keyProgress, id)
		pipe.Del(ctx, keyResults+id)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, fmt.Errorf("jobstore: cleanup %s: %w", id, err)
		}
		removed++
	}
	return removed, nil
}

func (s *Redis) Stats(ctx context.Context) (Stats, error) {
	all, err := s.rdb.HGetAll(ctx, keyJobs).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("jobstore: stats: %w", err)
	}
	st := Stats{ByStatus: make(map[job.Status]int)}
	for _, raw := range all {
		var j job.Job
		if err := json.Unmarshal([]byte(raw), &j); err != nil {
			continue
		}
		st.Total++
		st.ByStatus[j.Status]++
	}
	return st, nil
}

func (s *Redis) Close() error { return s.rdb.Close() }

// maxUpdateRetries bounds the optimistic retry loop in updateJob.
const maxUpdateRetries = 8

// updateJob reads the job, applies mutate and writes it back inside a
// WATCH transaction on the scan:jobs hash. A concurrent writer aborts
// the EXEC and the whole read-mutate-write is retried against fresh
// state, so a worker's progress update can never resurrect a job that
// was cancelled between its read and its write. The WATCH covers the
// whole hash, which is coarser than one job, so unrelated writers also
// trigger a retry; the loop absorbs that.
func (s *Redis) updateJob(ctx context.Context, id string, mutate func(*job.Job) error) (*job.Job, error) {
	var updated *job.Job
	txn := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, keyJobs, id).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("jobstore: get: %w", err)
		}
		var j job.Job
		if err := json.Unmarshal(raw, &j); err != nil {
			return fmt.Errorf("jobstore: unmarshal job %s: %w", id, err)
		}
		if err := mutate(&j); err != nil {
			return err
		}

		out, err := json.Marshal(&j)
		if err != nil {
			return fmt.Errorf("jobstore: marshal job: %w", err)
		}
		row, err := json.Marshal(progressRow{
			Status:    j.Status,
			Progress:  j.Progress,
			Phase:     j.Phase,
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("jobstore: marshal progress: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, keyJobs, id, out)
			pipe.HSet(ctx, keyProgress, id, row)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &j
		return nil
	}

	for range maxUpdateRetries {
		err := s.rdb.Watch(ctx, txn, keyJobs)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("jobstore: job %s: update contention", id)
}

func (s *Redis) publish(ctx context.Context, j *job.Job) {
	ev := Event{
		ScanID:   j.ID,
		Status:   j.Status,
		Progress: j.Progress,
		Phase:    j.Phase,
		At:       time.Now().UTC(),
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, channelUpdates, raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("scan_id", j.ID).Msg("publish scan update failed")
	}
}
