package jobstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codeclinic/codeclinic/pkg/job"
)

// Memory is an in-process Store. Jobs and results live in maps guarded
// by a single mutex; events fan out to subscriber channels.
type Memory struct {
	mu      sync.RWMutex
	jobs    map[string]*job.Job
	results map[string]*job.Result

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		jobs:    make(map[string]*job.Job),
		results: make(map[string]*job.Result),
		subs:    make(map[int]chan Event),
	}
}

func (m *Memory) Create(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[j.ID]; exists {
		return fmt.Errorf("jobstore: job %s already exists", j.ID)
	}
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *Memory) SetStatus(_ context.Context, id string, status job.Status, errMsg string) error {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if err := applyStatus(j, status, errMsg); err != nil {
		m.mu.Unlock()
		return err
	}
	ev := m.eventLocked(j)
	m.mu.Unlock()

	m.publish(ev)
	return nil
}

func (m *Memory) SetProgress(_ context.Context, id string, progress int, phase string) error {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if err := applyProgress(j, progress, phase); err != nil {
		m.mu.Unlock()
		return err
	}
	ev := m.eventLocked(j)
	m.mu.Unlock()

	m.publish(ev)
	return nil
}

func (m *Memory) SetPages(_ context.Context, id string, pages []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.Pages = append([]string(nil), pages...)
	return nil
}

func (m *Memory) SaveResult(_ context.Context, r *job.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.results[r.ScanID] = &cp
	return nil
}

func (m *Memory) GetResult(_ context.Context, id string) (*job.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, 16)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	go func() {
		<-ctx.Done()
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (m *Memory) Cleanup(_ context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, j := range m.jobs {
		if !j.Status.IsTerminal() || j.CompletedAt == nil || j.CompletedAt.After(cutoff) {
			continue
		}
		delete(m.jobs, id)
		delete(m.results, id)
		removed++
	}
	return removed, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{ByStatus: make(map[job.Status]int)}
	for _, j := range m.jobs {
		s.Total++
		s.ByStatus[j.Status]++
	}
	return s, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) eventLocked(j *job.Job) Event {
	return Event{
		ScanID:   j.ID,
		Status:   j.Status,
		Progress: j.Progress,
		Phase:    j.Phase,
		At:       time.Now().UTC(),
	}
}

func (m *Memory) publish(ev Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
