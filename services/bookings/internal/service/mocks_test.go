package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/diagnosis/rental-bookings/internal/lifecycle"
	"github.com/diagnosis/rental-bookings/pkg/events"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/repository"
)

type mockBookingRepo struct {
	mu       sync.Mutex
	bookings map[int64]*domain.Booking
	getErr   error
}

func newMockBookingRepo(bs ...*domain.Booking) *mockBookingRepo {
	m := &mockBookingRepo{bookings: make(map[int64]*domain.Booking)}
	for _, b := range bs {
		m.bookings[b.ID] = b
	}
	return m
}

func (m *mockBookingRepo) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *mockBookingRepo) ListByGuest(_ context.Context, guest lifecycle.Identity, _, _ int, status *lifecycle.Status) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.bookings {
		if lifecycle.NewIdentity(b.Guest).Equal(guest) && (status == nil || b.Status == *status) {
			out = append(out, *b)
		}
	}
	return out, nil
}

// ListByHost has no property table to join against, so it returns everything
// matching the status filter.
func (m *mockBookingRepo) ListByHost(_ context.Context, _ lifecycle.Identity, _, _ int, status *lifecycle.Status) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.bookings {
		if status == nil || b.Status == *status {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBookingRepo) Upsert(_ context.Context, b *domain.Booking) (repository.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.bookings[b.ID]
	if !ok {
		m.bookings[b.ID] = b
		return repository.UpsertResult{Applied: true}, nil
	}
	if b.LedgerBlock < prev.LedgerBlock {
		return repository.UpsertResult{Applied: false}, nil
	}
	status := prev.Status
	m.bookings[b.ID] = b
	return repository.UpsertResult{Applied: true, Previous: &status}, nil
}

type mockPropertyRepo struct {
	mu         sync.Mutex
	properties map[string]*domain.Property
}

func newMockPropertyRepo(ps ...*domain.Property) *mockPropertyRepo {
	m := &mockPropertyRepo{properties: make(map[string]*domain.Property)}
	for _, p := range ps {
		m.properties[p.ID] = p
	}
	return m
}

func (m *mockPropertyRepo) GetByID(_ context.Context, id string) (*domain.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockPropertyRepo) Upsert(_ context.Context, p *domain.Property) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.properties[p.ID]; ok && p.LedgerBlock < prev.LedgerBlock {
		return false, nil
	}
	m.properties[p.ID] = p
	return true, nil
}

type pendingEntry struct {
	action    string
	requestID string
}

type mockPendingRepo struct {
	mu      sync.Mutex
	entries map[int64]pendingEntry
	clears  int
}

func newMockPendingRepo() *mockPendingRepo {
	return &mockPendingRepo{entries: make(map[int64]pendingEntry)}
}

func (m *mockPendingRepo) Mark(_ context.Context, id int64, action, requestID string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; ok {
		return false, nil
	}
	m.entries[id] = pendingEntry{action: action, requestID: requestID}
	return true, nil
}

func (m *mockPendingRepo) Get(_ context.Context, id int64) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[id]
	return e.action, e.requestID, nil
}

func (m *mockPendingRepo) ClearIfOwner(_ context.Context, id int64, requestID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; !ok || requestID == "" || e.requestID != requestID {
		return false, nil
	}
	delete(m.entries, id)
	return true, nil
}

func (m *mockPendingRepo) Clear(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	delete(m.entries, id)
	return nil
}

type published struct {
	subject string
	data    interface{}
}

type mockPublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (m *mockPublisher) Publish(_ context.Context, subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, published{subject: subject, data: data})
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, p := range m.sent {
		out[i] = p.subject
	}
	return out
}

type mockSubscriber struct {
	handlers map[string]func(*events.Message)
}

func (m *mockSubscriber) Subscribe(subject string, handler func(*events.Message)) error {
	return m.QueueSubscribe(subject, "", handler)
}

func (m *mockSubscriber) QueueSubscribe(subject, _ string, handler func(*events.Message)) error {
	if m.handlers == nil {
		m.handlers = make(map[string]func(*events.Message))
	}
	m.handlers[subject] = handler
	return nil
}

func (m *mockSubscriber) Close() error { return nil }

var errBoom = errors.New("boom")
