// Package memory provides an in-process repository.Store. Transactions are
// copy-on-write: WithinTx works on a clone of the data and swaps it in only
// when the callback succeeds. Transactions are serialized.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

type state struct {
	users         map[string]domain.User
	categories    map[string]domain.Category
	rules         map[string]domain.TriggerRule
	tickets       map[string]domain.Ticket
	history       []domain.TicketHistory
	comments      []domain.TicketComment
	attachments   []domain.TicketAttachment
	notifications []domain.Notification
	counters      map[string]int64
}

func newState() *state {
	return &state{
		users:      map[string]domain.User{},
		categories: map[string]domain.Category{},
		rules:      map[string]domain.TriggerRule{},
		tickets:    map[string]domain.Ticket{},
		counters:   map[string]int64{},
	}
}

func (s *state) clone() *state {
	c := &state{
		users:         make(map[string]domain.User, len(s.users)),
		categories:    make(map[string]domain.Category, len(s.categories)),
		rules:         make(map[string]domain.TriggerRule, len(s.rules)),
		tickets:       make(map[string]domain.Ticket, len(s.tickets)),
		history:       append([]domain.TicketHistory(nil), s.history...),
		comments:      append([]domain.TicketComment(nil), s.comments...),
		attachments:   append([]domain.TicketAttachment(nil), s.attachments...),
		notifications: append([]domain.Notification(nil), s.notifications...),
		counters:      make(map[string]int64, len(s.counters)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.rules {
		c.rules[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	return c
}

// Store is a repository.Store kept entirely in memory.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// SetClock replaces the time source used for server-side timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Repos returns repositories that each lock the store per call.
// They must not be used from inside a WithinTx callback.
func (s *Store) Repos() repository.Repositories {
	return s.reposFor(&handle{store: s})
}

// WithinTx runs fn against a private copy of the data.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.st.clone()
	if err := fn(s.reposFor(&handle{store: s, tx: tx})); err != nil {
		return err
	}
	s.st = tx
	return nil
}

func (s *Store) reposFor(h *handle) repository.Repositories {
	return repository.Repositories{
		Users:         &userRepo{h},
		Categories:    &categoryRepo{h},
		Rules:         &ruleRepo{h},
		Tickets:       &ticketRepo{h},
		History:       &historyRepo{h},
		Comments:      &commentRepo{h},
		Attachments:   &attachmentRepo{h},
		Notifications: &notificationRepo{h},
		Counters:      &counterRepo{h},
	}
}

type handle struct {
	store *Store
	tx    *state
}

func (h *handle) do(fn func(st *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return fn(h.store.st)
}

func (h *handle) now() time.Time {
	return h.store.now()
}

var _ repository.Store = (*Store)(nil)
