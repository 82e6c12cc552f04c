package userinfra

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/iam/user"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
)

// MemoryUserRepository is a process local user and group store
type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[kernel.UserID]user.User
	groups map[kernel.GroupID]user.Group
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:  make(map[kernel.UserID]user.User),
		groups: make(map[kernel.GroupID]user.Group),
	}
}

// PutUser inserts or replaces u
func (r *MemoryUserRepository) PutUser(u user.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Roles = slices.Clone(u.Roles)
	u.Groups = slices.Clone(u.Groups)
	r.users[u.ID] = u
}

func (r *MemoryUserRepository) PutGroup(g user.Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g.Roles = slices.Clone(g.Roles)
	r.groups[g.ID] = g
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id kernel.UserID) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrUserNotFound()
	}
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) FindByUsernameHash(_ context.Context, usernameHash string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.UsernameHash == usernameHash {
			return cloneUser(u), nil
		}
	}
	return nil, user.ErrUserNotFound()
}

func (r *MemoryUserRepository) UpdateRoles(_ context.Context, id kernel.UserID, roles []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.ErrUserNotFound()
	}
	u.Roles = slices.Clone(roles)
	u.UpdatedAt = time.Now()
	r.users[id] = u
	return nil
}

func (r *MemoryUserRepository) SetBlocked(_ context.Context, id kernel.UserID, blocked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.ErrUserNotFound()
	}
	u.Blocked = blocked
	u.UpdatedAt = time.Now()
	r.users[id] = u
	return nil
}

func (r *MemoryUserRepository) FindByIDs(_ context.Context, ids []kernel.GroupID) ([]user.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []user.Group
	for _, id := range ids {
		if g, ok := r.groups[id]; ok {
			g.Roles = slices.Clone(g.Roles)
			out = append(out, g)
		}
	}
	return out, nil
}

func cloneUser(u user.User) *user.User {
	u.Roles = slices.Clone(u.Roles)
	u.Groups = slices.Clone(u.Groups)
	return &u
}
