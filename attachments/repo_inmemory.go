package attachments

import (
	"context"
	"errors"
	"sync"
	"time"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.RWMutex
	records map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

type entry struct {
	record    Record
	expiresAt time.Time
}

// NewInMemoryRepo creates a new in-memory attachment repository
func NewInMemoryRepo(ttl time.Duration) *InMemoryRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryRepo{
		records: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (r *InMemoryRepo) Attach(_ context.Context, sessionID, broker string) (*Record, error) {
	if sessionID == "" || broker == "" {
		return nil, errors.New("[attachments InMemoryRepo] sessionID and broker are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.records[sessionID]
	if !ok || now.After(e.expiresAt) {
		r.pruneLocked(now)
		e.record = Record{
			SessionID:  sessionID,
			Broker:     broker,
			State:      StateAnonymous,
			AttachedAt: now,
			UpdatedAt:  now,
		}
	}
	e.expiresAt = now.Add(r.ttl)
	r.records[sessionID] = e

	rec := e.record
	return &rec, nil
}

func (r *InMemoryRepo) Get(_ context.Context, sessionID string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.records[sessionID]
	if !ok || r.now().After(e.expiresAt) {
		return nil, ssoerrors.ErrNotAttached
	}
	rec := e.record
	return &rec, nil
}

func (r *InMemoryRepo) Authenticate(_ context.Context, sessionID, userID string) error {
	if userID == "" {
		return errors.New("[attachments InMemoryRepo] userID is required")
	}
	return r.update(sessionID, func(rec *Record) {
		rec.State = StateAuthenticated
		rec.UserID = userID
	})
}

func (r *InMemoryRepo) Logout(_ context.Context, sessionID string) error {
	return r.update(sessionID, func(rec *Record) {
		rec.State = StateAnonymous
		rec.UserID = ""
	})
}

func (r *InMemoryRepo) update(sessionID string, fn func(*Record)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.records[sessionID]
	if !ok || now.After(e.expiresAt) {
		return ssoerrors.ErrNotAttached
	}
	fn(&e.record)
	e.record.UpdatedAt = now
	e.expiresAt = now.Add(r.ttl)
	r.records[sessionID] = e
	return nil
}

// pruneLocked drops expired records. Callers hold the write lock.
func (r *InMemoryRepo) pruneLocked(now time.Time) {
	for id, e := range r.records {
		if now.After(e.expiresAt) {
			delete(r.records, id)
		}
	}
}
