package sso

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store with the same filtering semantics as the
// PostgreSQL implementation. It backs tests and local development without a
// database.
type MemStore struct {
	mu           sync.RWMutex
	users        map[string]User
	appGrants    []ApplicationGrant
	modules      []Module
	moduleGrants []memModuleGrant
	entries      []AccessEntry
	lastAccess   map[string]time.Time
	now          func() time.Time
}

type memModuleGrant struct {
	userID     string
	moduleID   string
	permission Permission
	active     bool
	expiresAt  *time.Time
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:      make(map[string]User),
		lastAccess: make(map[string]time.Time),
		now:        time.Now,
	}
}

// AddUser registers a user record.
func (s *MemStore) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddModule registers a module.
func (s *MemStore) AddModule(m Module) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules = append(s.modules, m)
}

// GrantApplication gives a user application-level access.
func (s *MemStore) GrantApplication(userID, applicationID string, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appGrants = append(s.appGrants, ApplicationGrant{
		UserID:        userID,
		ApplicationID: applicationID,
		Active:        true,
		ExpiresAt:     expiresAt,
	})
}

// GrantModule gives a user a permission within a module.
func (s *MemStore) GrantModule(userID, moduleID string, perm Permission, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moduleGrants = append(s.moduleGrants, memModuleGrant{
		userID:     userID,
		moduleID:   moduleID,
		permission: perm,
		active:     true,
		expiresAt:  expiresAt,
	})
}

// Entries returns a snapshot of the appended access-log rows.
func (s *MemStore) Entries() []AccessEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AccessEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// LastAccess reports the recorded last-access time for a user.
func (s *MemStore) LastAccess(userID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastAccess[userID]
	return t, ok
}

func (s *MemStore) Users(context.Context) UserStore          { return s }
func (s *MemStore) Grants(context.Context) GrantStore        { return s }
func (s *MemStore) AccessLog(context.Context) AccessLogStore { return s }

func (s *MemStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			copied := u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) TouchLastAccess(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess[userID] = s.now()
	return nil
}

func (s *MemStore) ApplicationGrant(_ context.Context, userID, applicationID string) (*ApplicationGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	for _, g := range s.appGrants {
		if g.UserID == userID && g.ApplicationID == applicationID && g.Active && !expired(g.ExpiresAt, now) {
			copied := g
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ModuleGrants(_ context.Context, userID, moduleRoute, _ string) (*ModuleGrantSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var module *Module
	for i := range s.modules {
		if s.modules[i].Route == moduleRoute && s.modules[i].Active {
			module = &s.modules[i]
			break
		}
	}
	if module == nil {
		return nil, ErrNotFound
	}

	now := s.now()
	set := &ModuleGrantSet{ModuleID: module.ID}
	seen := make(map[Permission]struct{})
	for _, g := range s.moduleGrants {
		if g.userID != userID || g.moduleID != module.ID || !g.active || expired(g.expiresAt, now) {
			continue
		}
		if _, dup := seen[g.permission]; dup {
			continue
		}
		seen[g.permission] = struct{}{}
		set.Permissions = append(set.Permissions, g.permission)
	}
	return set, nil
}

func (s *MemStore) ModulesForUser(ctx context.Context, userID, applicationID string) ([]ModuleAccess, error) {
	s.mu.RLock()
	modules := make([]Module, 0, len(s.modules))
	for _, m := range s.modules {
		if m.Active {
			modules = append(modules, m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Order != modules[j].Order {
			return modules[i].Order < modules[j].Order
		}
		return modules[i].Name < modules[j].Name
	})

	result := make([]ModuleAccess, 0, len(modules))
	for _, m := range modules {
		set, err := s.ModuleGrants(ctx, userID, m.Route, applicationID)
		if err != nil {
			return nil, err
		}
		perms := set.Permissions
		if perms == nil {
			perms = []Permission{}
		}
		result = append(result, ModuleAccess{ID: m.ID, Name: m.Name, Route: m.Route, Permissions: perms})
	}
	return result, nil
}

func (s *MemStore) Append(_ context.Context, entry *AccessEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func expired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && expiresAt.Before(now)
}
