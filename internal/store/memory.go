package store

import (
	"sort"
	"sync"

	"github.com/jpalmerr/inspectwatch/internal/api"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Jobs are keyed by evidence id. Subscribers receive updates via buffered
// channels; sends are non-blocking, so a subscriber whose buffer is full
// misses the update instead of blocking the trackers.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job

	subMu       sync.RWMutex
	subscribers map[chan Job]struct{}
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:        make(map[string]Job),
		subscribers: make(map[chan Job]struct{}),
	}
}

// Update stores job under its EvidenceID and notifies all subscribers.
func (m *MemoryStore) Update(job Job) {
	job = cloneJob(job)

	m.mu.Lock()
	m.jobs[job.EvidenceID] = job
	m.mu.Unlock()

	m.notifySubscribers(job)
}

// Get returns the job stored for evidenceID.
func (m *MemoryStore) Get(evidenceID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[evidenceID]
	if !ok {
		return Job{}, false
	}
	return cloneJob(job), true
}

// GetAll returns a copy of every stored job, ordered by evidence id.
func (m *MemoryStore) GetAll() []Job {
	m.mu.RLock()
	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, cloneJob(job))
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].EvidenceID < jobs[j].EvidenceID
	})
	return jobs
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 messages. Caller must call
// [MemoryStore.Unsubscribe] when done.
func (m *MemoryStore) Subscribe() <-chan Job {
	ch := make(chan Job, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Job) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (m *MemoryStore) SubscriberCount() int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers)
}

func (m *MemoryStore) notifySubscribers(job Job) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- job:
		default:
			// subscriber is slow, drop the message
		}
	}
}

// cloneJob copies the reference fields so that callers cannot mutate stored
// state.
func cloneJob(job Job) Job {
	if job.Labels != nil {
		labels := make(map[string]string, len(job.Labels))
		for k, v := range job.Labels {
			labels[k] = v
		}
		job.Labels = labels
	}
	if job.Issues != nil {
		job.Issues = append([]api.Issue(nil), job.Issues...)
	}
	if job.LastError != nil {
		msg := *job.LastError
		job.LastError = &msg
	}
	return job
}
