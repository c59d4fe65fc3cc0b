package settlement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a concurrency-safe settlement store for unit tests.
type InMemoryStore struct {
	mu      sync.Mutex
	tasks   map[string]Task
	byOutgo map[string]string
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemory creates an empty in-memory settlement store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		tasks:   make(map[string]Task),
		byOutgo: make(map[string]string),
	}
}

func (s *InMemoryStore) Schedule(_ context.Context, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byOutgo[task.OutgoingPaymentID]; exists {
		return nil
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Status = StatusPending
	task.Attempts = 0
	s.tasks[task.ID] = task
	s.byOutgo[task.OutgoingPaymentID] = task.ID
	return nil
}

func (s *InMemoryStore) Claim(_ context.Context, now time.Time, limit int) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Task
	for _, task := range s.tasks {
		if task.Status == StatusPending && !task.DueAt.After(now) {
			due = append(due, task)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	for i, task := range due {
		task.Status = StatusProcessing
		task.Attempts++
		s.tasks[task.ID] = task
		due[i] = task
	}

	return due, nil
}

func (s *InMemoryStore) MarkDone(_ context.Context, id string) error {
	return s.setStatus(id, StatusDone)
}

func (s *InMemoryStore) MarkRetry(_ context.Context, id string, dueAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	task.Status = StatusPending
	task.DueAt = dueAt
	s.tasks[id] = task
	return nil
}

func (s *InMemoryStore) MarkDead(_ context.Context, id string) error {
	return s.setStatus(id, StatusDead)
}

func (s *InMemoryStore) setStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	task.Status = status
	s.tasks[id] = task
	return nil
}

// TaskByOutgoingPayment is a test helper.
func (s *InMemoryStore) TaskByOutgoingPayment(outgoingPaymentID string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byOutgo[outgoingPaymentID]
	if !ok {
		return Task{}, false
	}
	return s.tasks[id], true
}
