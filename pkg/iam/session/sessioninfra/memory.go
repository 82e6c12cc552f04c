package sessioninfra

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/iam/session"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
)

// MemorySessionRepository keys rows by fingerprint under a single lock,
// which gives Upsert the same atomicity as the postgres ON CONFLICT path.
type MemorySessionRepository struct {
	mu    sync.Mutex
	byFP  map[string]session.Session
	clock func() time.Time
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		byFP:  make(map[string]session.Session),
		clock: time.Now,
	}
}

var _ session.Repository = (*MemorySessionRepository)(nil)

func (r *MemorySessionRepository) Upsert(_ context.Context, s session.Session) (*session.UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	result := &session.UpsertResult{}
	if prev, ok := r.byFP[s.Fingerprint]; ok {
		if prev.ID != s.ID {
			result.PreviousID = prev.ID
		}
		s.CreatedAt = prev.CreatedAt
	} else if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.Revoked = false
	s.UpdatedAt = now
	r.byFP[s.Fingerprint] = s
	result.Session = s
	return result, nil
}

func (r *MemorySessionRepository) FindByID(_ context.Context, id kernel.SessionID) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byFP {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, session.ErrSessionNotFound()
}

func (r *MemorySessionRepository) FindByFingerprint(_ context.Context, fp string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byFP[fp]
	if !ok {
		return nil, session.ErrSessionNotFound()
	}
	return &s, nil
}

func (r *MemorySessionRepository) FindActive(_ context.Context, userID kernel.UserID, fp string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byFP[fp]
	if !ok || !s.IsActiveFor(userID, fp) {
		return nil, session.ErrSessionNotFound()
	}
	return &s, nil
}

func (r *MemorySessionRepository) ListByUser(_ context.Context, userID kernel.UserID, opts kernel.PaginationOptions) (kernel.Paginated[session.Session], error) {
	r.mu.Lock()
	var items []session.Session
	for _, s := range r.byFP {
		if s.UserID == userID {
			items = append(items, s)
		}
	}
	r.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	return kernel.PageOf(items, opts), nil
}

func (r *MemorySessionRepository) Revoke(_ context.Context, id kernel.SessionID, userID kernel.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for fp, s := range r.byFP {
		if s.ID == id && s.UserID == userID {
			s.Revoked = true
			s.UpdatedAt = r.clock()
			r.byFP[fp] = s
			return nil
		}
	}
	return session.ErrSessionNotFound()
}

func (r *MemorySessionRepository) UpdateRefreshHash(_ context.Context, id kernel.SessionID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for fp, s := range r.byFP {
		if s.ID == id && !s.Revoked {
			if hash != "" {
				s.RefreshTokenHash = hash
			}
			s.UpdatedAt = r.clock()
			r.byFP[fp] = s
			return nil
		}
	}
	return session.ErrSessionNotFound()
}

// Count returns the number of stored rows
func (r *MemorySessionRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byFP)
}
