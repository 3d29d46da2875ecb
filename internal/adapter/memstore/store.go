// Package memstore is an in-memory domain.UnitOfWork. Transactions buffer
// their writes and apply them on commit; GetForUpdate takes a row lock that
// other transactions wait on until the holder commits or rolls back.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clothdonate/internal/domain"
)

// Store holds committed state.
type Store struct {
	mu            sync.RWMutex
	users         map[string]domain.User
	donations     map[string]domain.Donation
	organizations map[string]domain.Organization
	deliveries    map[string]domain.Delivery
	notifications map[string]domain.Notification

	locks *lockTable
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]domain.User),
		donations:     make(map[string]domain.Donation),
		organizations: make(map[string]domain.Organization),
		deliveries:    make(map[string]domain.Delivery),
		notifications: make(map[string]domain.Notification),
		locks:         newLockTable(),
		now:           time.Now,
	}
}

// InTx runs fn in a transaction. Writes become visible to others only if fn
// returns nil and the commit succeeds.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	t := newTx(s)
	defer s.locks.releaseAll(t)
	if err := fn(ctx, t.repositories()); err != nil {
		return err
	}
	return t.commit()
}

// Repos returns repositories whose calls each commit on their own.
func (s *Store) Repos() domain.Repositories {
	return (&tx{s: s, auto: true}).repositories()
}

// tx is one unit of work. In auto mode each repository call runs in its own
// short-lived child transaction.
type tx struct {
	s    *Store
	auto bool

	users         map[string]domain.User
	donations     map[string]domain.Donation
	organizations map[string]domain.Organization
	deliveries    map[string]domain.Delivery
	notifications map[string]domain.Notification
}

func newTx(s *Store) *tx {
	return &tx{
		s:             s,
		users:         make(map[string]domain.User),
		donations:     make(map[string]domain.Donation),
		organizations: make(map[string]domain.Organization),
		deliveries:    make(map[string]domain.Delivery),
		notifications: make(map[string]domain.Notification),
	}
}

func (t *tx) repositories() domain.Repositories {
	return domain.Repositories{
		Users:         userRepo{t},
		Donations:     donationRepo{t},
		Organizations: organizationRepo{t},
		Deliveries:    deliveryRepo{t},
		Notifications: notificationRepo{t},
	}
}

// run executes fn against t, or against a fresh committed child when t is in auto mode.
func (t *tx) run(fn func(t *tx) error) error {
	if !t.auto {
		return fn(t)
	}
	child := newTx(t.s)
	defer t.s.locks.releaseAll(child)
	if err := fn(child); err != nil {
		return err
	}
	return child.commit()
}

func (t *tx) lock(ctx context.Context, kind, id string) error {
	return t.s.locks.acquire(ctx, kind+":"+id, t)
}

func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, org := range t.organizations {
		for otherID, other := range s.organizations {
			if otherID == id {
				continue
			}
			if other.BusinessNumber == org.BusinessNumber {
				return fmt.Errorf("%w: business number %s already registered", domain.ErrDuplicateOperation, org.BusinessNumber)
			}
			if other.UserID == org.UserID {
				return fmt.Errorf("%w: user %s already owns an organization", domain.ErrDuplicateOperation, org.UserID)
			}
		}
	}
	for id, u := range t.users {
		for otherID, other := range s.users {
			if otherID != id && other.Email == u.Email {
				return fmt.Errorf("%w: email %s already registered", domain.ErrDuplicateOperation, u.Email)
			}
		}
	}
	for id, dl := range t.deliveries {
		for otherID, other := range s.deliveries {
			if otherID != id && other.DonationID == dl.DonationID {
				return fmt.Errorf("%w: donation %s already has a delivery", domain.ErrDuplicateOperation, dl.DonationID)
			}
		}
	}

	for id, u := range t.users {
		s.users[id] = u
	}
	for id, d := range t.donations {
		s.donations[id] = d
	}
	for id, o := range t.organizations {
		s.organizations[id] = o
	}
	for id, dl := range t.deliveries {
		s.deliveries[id] = dl
	}
	for id, n := range t.notifications {
		if _, exists := s.notifications[id]; !exists && s.findDedupeLocked(n.UserID, n.DedupeKey, id) {
			// Same semantics as ON CONFLICT DO NOTHING.
			continue
		}
		s.notifications[id] = n
	}
	return nil
}

func (s *Store) findDedupeLocked(userID, key, exceptID string) bool {
	for id, n := range s.notifications {
		if id != exceptID && n.UserID == userID && n.DedupeKey == key {
			return true
		}
	}
	return false
}

// lockTable grants row locks to one transaction at a time. Locks are
// re-entrant for their holder and released together at transaction end.
type lockTable struct {
	mu     sync.Mutex
	cond   *sync.Cond
	owners map[string]*tx
}

func newLockTable() *lockTable {
	l := &lockTable{owners: make(map[string]*tx)}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *lockTable) acquire(ctx context.Context, key string, owner *tx) error {
	// Wake waiters when ctx ends so they can give up.
	stop := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.cond.Broadcast()
	})
	defer stop()

	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur, held := l.owners[key]
		if !held || cur == owner {
			l.owners[key] = owner
			return nil
		}
		l.cond.Wait()
	}
}

func (l *lockTable) releaseAll(owner *tx) {
	l.mu.Lock()
	defer l.mu.Unlock()
	released := false
	for key, cur := range l.owners {
		if cur == owner {
			delete(l.owners, key)
			released = true
		}
	}
	if released {
		l.cond.Broadcast()
	}
}

// SeedUser stores a user directly. Users are created by the authentication
// layer; the seed hook stands in for it in tests and local runs.
func (s *Store) SeedUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	s.users[u.ID] = u
}

// SeedOrganization stores an organization directly.
func (s *Store) SeedOrganization(o domain.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	s.organizations[o.ID] = o
}

var _ domain.UnitOfWork = (*Store)(nil)
