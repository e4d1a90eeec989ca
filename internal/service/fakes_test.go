package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/query"
	"github.com/deskflow/helpdesk/internal/repository"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("gen-%d", g.n)
}

// memStore is an in-memory datastore. Transactions and savepoints are
// modelled by snapshotting the slices and restoring them on failure.
type memStore struct {
	mu         sync.Mutex
	tickets    []domain.Ticket
	contacts   []domain.Contact
	categories []domain.Category

	failTicketTitle string
	lastPlan        query.Plan
}

type memSnapshot struct {
	tickets  []domain.Ticket
	contacts []domain.Contact
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		tickets:  append([]domain.Ticket(nil), s.tickets...),
		contacts: append([]domain.Contact(nil), s.contacts...),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = snap.tickets
	s.contacts = snap.contacts
}

func (s *memStore) repos() repository.Repositories {
	return repository.Repositories{
		Tickets:    memTickets{s},
		Contacts:   memContacts{s},
		Categories: memCategories{s},
	}
}

type memTickets struct{ s *memStore }

func (r memTickets) Create(_ context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failTicketTitle != "" && t.Title == r.s.failTicketTitle {
		return errors.New("insert rejected")
	}
	r.s.tickets = append(r.s.tickets, *t)
	return nil
}

func (r memTickets) List(_ context.Context, plan query.Plan) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lastPlan = plan
	return append([]domain.Ticket{}, r.s.tickets...), nil
}

func (r memTickets) Count(_ context.Context, plan query.Plan) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.tickets), nil
}

func (r memTickets) ExistingIDs(_ context.Context, ids []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, id := range ids {
		for _, t := range r.s.tickets {
			if t.ID == id {
				out = append(out, id)
				break
			}
		}
	}
	return out, nil
}

type memContacts struct{ s *memStore }

func (r memContacts) Create(_ context.Context, c *domain.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.contacts {
		if strings.EqualFold(existing.Email, c.Email) {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	r.s.contacts = append(r.s.contacts, *c)
	return nil
}

func (r memContacts) List(context.Context) ([]domain.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.Contact{}, r.s.contacts...), nil
}

func (r memContacts) FindByEmail(_ context.Context, email string) (*domain.Contact, error) {
	return r.find(func(c domain.Contact) bool { return strings.EqualFold(c.Email, email) })
}

func (r memContacts) FindByName(_ context.Context, name string) (*domain.Contact, error) {
	return r.find(func(c domain.Contact) bool { return strings.EqualFold(c.Name, name) })
}

func (r memContacts) find(match func(domain.Contact) bool) (*domain.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contacts {
		if match(c) {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (r memContacts) ExistingEmails(_ context.Context, emails []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, email := range emails {
		for _, c := range r.s.contacts {
			if strings.EqualFold(c.Email, email) {
				out = append(out, c.Email)
				break
			}
		}
	}
	return out, nil
}

type memCategories struct{ s *memStore }

func (r memCategories) List(context.Context) ([]domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.Category{}, r.s.categories...), nil
}

type memTransactor struct {
	store *memStore
	// isolateErr, when set, makes every savepoint fail to open.
	isolateErr error
	commits    int
}

func (t *memTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.TxScope) error) error {
	snap := t.store.snapshot()
	if err := fn(ctx, &memScope{t: t}); err != nil {
		t.store.restore(snap)
		return err
	}
	t.commits++
	return nil
}

type memScope struct{ t *memTransactor }

func (s *memScope) Repos() repository.Repositories { return s.t.store.repos() }

func (s *memScope) Isolate(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if s.t.isolateErr != nil {
		return &repository.TxError{Op: "create savepoint", Err: s.t.isolateErr}
	}
	snap := s.t.store.snapshot()
	if err := fn(ctx, s.t.store.repos()); err != nil {
		s.t.store.restore(snap)
		return err
	}
	return nil
}

type memBatches struct {
	mu      sync.Mutex
	batches map[string]domain.ImportBatch
	claims  map[string]bool
	saveErr error
}

func newMemBatches() *memBatches {
	return &memBatches{batches: map[string]domain.ImportBatch{}, claims: map[string]bool{}}
}

func (b *memBatches) Save(_ context.Context, batch domain.ImportBatch, _ time.Duration) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches[batch.ID] = batch
	return nil
}

func (b *memBatches) Get(_ context.Context, id string) (*domain.ImportBatch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch, ok := b.batches[id]
	if !ok {
		return nil, repository.ErrBatchNotFound
	}
	return &batch, nil
}

func (b *memBatches) Claim(_ context.Context, id string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.claims[id] {
		return repository.ErrBatchAlreadyConfirmed
	}
	b.claims[id] = true
	return nil
}

func (b *memBatches) Release(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.claims, id)
	return nil
}

func (b *memBatches) MarkConfirmed(_ context.Context, batch domain.ImportBatch) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches[batch.ID] = batch
	return nil
}
