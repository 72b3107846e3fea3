package jobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeclinic/codeclinic/pkg/finding"
	"github.com/codeclinic/codeclinic/pkg/job"
)

// Both implementations must behave identically, so every test runs
// against both.
func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		fn(t, NewRedis(rdb, zerolog.Nop()))
	})
}

func TestCreateAndGet(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		j := job.New("https://example.com", job.ScanFullSite)

		require.NoError(t, s.Create(ctx, j))

		got, err := s.Get(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, j.ID, got.ID)
		assert.Equal(t, job.StatusPending, got.Status)
		assert.Equal(t, "https://example.com", got.URL)

		err = s.Create(ctx, j)
		assert.ErrorContains(t, err, "already exists")

		_, err = s.Get(ctx, "scan_missing")
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})
}

func TestStatusTransitionStampsTimestamps(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		j := job.New("https://example.com", job.ScanFullSite)
		require.NoError(t, s.Create(ctx, j))

		require.NoError(t, s.SetStatus(ctx, j.ID, job.StatusCrawling, ""))
		got, err := s.Get(ctx, j.ID)
		require.NoError(t, err)
		require.NotNil(t, got.StartedAt, "leaving pending stamps started_at")
		assert.Nil(t, got.CompletedAt)

		require.NoError(t, s.SetStatus(ctx, j.ID, job.StatusScanning, ""))
		require.NoError(t, s.SetStatus(ctx, j.ID, job.StatusCompleted, ""))

		got, err = s.Get(ctx, j.ID)
		require.NoError(t, err)
		require.NotNil(t, got.CompletedAt)
		assert.Equal(t, job.ProgressDone, got.Progress)
		assert.Equal(t, job.PhaseDone, got.Phase)
	})
}

func TestStatusTransitionRejected(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		j := job.New("https://example.com", job.ScanFullSite)
		require.NoError(t, s.Create(ctx, j))

		err := s.SetStatus(ctx, j.ID, job.StatusCompleted, "")
		assert.True(t, errors.Is(err, ErrBadTransition), "got %v", err)

		require.NoError(t, s.SetStatus(ctx, j.ID, job.StatusFailed, "scanner unreachable"))
		err = s.SetStatus(ctx, j.ID, job.StatusCrawling, "")
		assert.True(t, errors.Is(err, ErrBadTransition), "failed is terminal, got %v", err)

		got, err := s.Get(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, "scanner unreachable", got.Error)
	})
}

func TestProgressAndPages(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		j := job.New("https://example.com", job.ScanSelectivePages)
		require.NoError(t, s.Create(ctx, j))

		require.NoError(t, s.SetProgress(ctx, j.ID, 45, job.PhaseSpider))
		require.NoError(t, s.SetPages(ctx, j.ID, []string{
			"https://example.com/",
			"https://example.com/about",
		}))

		got, err := s.Get(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, 45, got.Progress)
		assert.Equal(t, job.PhaseSpider, got.Phase)
		assert.Len(t, got.Pages, 2)

		assert.True(t, errors.Is(s.SetProgress(ctx, "scan_missing", 10, ""), ErrNotFound))
	})
}

func TestProgressRejectedOnTerminalJob(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		j := job.New("https://example.com", job.ScanFullSite)
		require.NoError(t, s.Create(ctx, j))
		require.NoError(t, s.SetStatus(ctx, j.ID, job.StatusCrawling, ""))
		require.NoError(t, s.SetStatus(ctx, j.ID, job.StatusCancelled, ""))

		err := s.SetProgress(ctx, j.ID, 80, job.PhaseActiveScan)
		assert.True(t, errors.Is(err, ErrBadTransition), "got %v", err)

		got, err := s.Get(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, job.StatusCancelled, got.Status)
	})
}

func TestCancelSurvivesConcurrentProgress(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		j := job.New("https://example.com", job.ScanFullSite)
		require.NoError(t, s.Create(ctx, j))
		require.NoError(t, s.SetStatus(ctx, j.ID, job.StatusCrawling, ""))
		require.NoError(t, s.SetStatus(ctx, j.ID, job.StatusScanning, ""))

		// A worker hammering progress updates must not overwrite a
		// cancellation that lands between its read and its write.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 200; i++ {
				err := s.SetProgress(ctx, j.ID, job.ActiveScanProgress(i%100), job.PhaseActiveScan)
				if errors.Is(err, ErrBadTransition) {
					return
				}
			}
		}()

		require.NoError(t, s.SetStatus(ctx, j.ID, job.StatusCancelled, ""))
		<-done

		got, err := s.Get(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, job.StatusCancelled, got.Status)
		assert.True(t, got.Status.IsTerminal())

		err = s.SetStatus(ctx, j.ID, job.StatusCompleted, "")
		assert.True(t, errors.Is(err, ErrBadTransition), "cancelled stays terminal, got %v", err)
	})
}

func TestCancelBeforeStartHasNoStartTime(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		j := job.New("https://example.com", job.ScanFullSite)
		require.NoError(t, s.Create(ctx, j))

		require.NoError(t, s.SetStatus(ctx, j.ID, job.StatusCancelled, ""))

		got, err := s.Get(ctx, j.ID)
		require.NoError(t, err)
		assert.Nil(t, got.StartedAt, "a job cancelled from the queue never started")
		require.NotNil(t, got.CompletedAt)
	})
}

func TestSaveAndGetResult(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		r := &job.Result{
			ScanID: "scan_abc123def456",
			URL:    "https://example.com",
			Vulnerabilities: []finding.Vulnerability{
				{ID: "vuln_1", Type: finding.TypeXSS, Severity: finding.High, Title: "Reflected XSS"},
			},
			Summary:     finding.Summary{TotalIssues: 1, HighRisk: 1},
			HealthScore: 72,
			Grade:       "C",
			CompletedAt: time.Now().UTC(),
		}
		require.NoError(t, s.SaveResult(ctx, r))

		got, err := s.GetResult(ctx, r.ScanID)
		require.NoError(t, err)
		assert.Equal(t, 72, got.HealthScore)
		require.Len(t, got.Vulnerabilities, 1)
		assert.Equal(t, finding.TypeXSS, got.Vulnerabilities[0].Type)

		_, err = s.GetResult(ctx, "scan_missing")
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})
}

func TestSubscribeReceivesEvents(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := s.Subscribe(ctx)
		require.NoError(t, err)

		j := job.New("https://example.com", job.ScanFullSite)
		require.NoError(t, s.Create(ctx, j))
		require.NoError(t, s.SetStatus(ctx, j.ID, job.StatusCrawling, ""))

		select {
		case ev := <-events:
			assert.Equal(t, j.ID, ev.ScanID)
			assert.Equal(t, job.StatusCrawling, ev.Status)
		case <-time.After(2 * time.Second):
			t.Fatal("no event received")
		}
	})
}

func TestCleanupRemovesOldTerminalJobs(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		old := job.New("https://old.example.com", job.ScanFullSite)
		require.NoError(t, s.Create(ctx, old))
		require.NoError(t, s.SetStatus(ctx, old.ID, job.StatusFailed, "boom"))

		running := job.New("https://busy.example.com", job.ScanFullSite)
		require.NoError(t, s.Create(ctx, running))
		require.NoError(t, s.SetStatus(ctx, running.ID, job.StatusCrawling, ""))

		// maxAge 0 treats every terminal job as expired.
		removed, err := s.Cleanup(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, err = s.Get(ctx, old.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = s.Get(ctx, running.ID)
		assert.NoError(t, err, "running jobs survive cleanup")
	})
}

func TestStats(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		a := job.New("https://a.example.com", job.ScanFullSite)
		b := job.New("https://b.example.com", job.ScanFullSite)
		require.NoError(t, s.Create(ctx, a))
		require.NoError(t, s.Create(ctx, b))
		require.NoError(t, s.SetStatus(ctx, b.ID, job.StatusCrawling, ""))

		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, st.Total)
		assert.Equal(t, 1, st.ByStatus[job.StatusPending])
		assert.Equal(t, 1, st.ByStatus[job.StatusCrawling])
	})
}
