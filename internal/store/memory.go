package store

import (
	"context"
	"sync"
)

// Memory is an in-memory Store used in tests and for local development.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]User
	userBans map[string]UserBan
	ipBans   map[string]IPBan
	licenses map[string]License
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]User),
		userBans: make(map[string]UserBan),
		ipBans:   make(map[string]IPBan),
		licenses: make(map[string]License),
	}
}

// PutUser seeds a user record.
func (m *Memory) PutUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.SubjectID] = u
}

func (m *Memory) GetUser(ctx context.Context, subjectID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[subjectID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

func (m *Memory) InsertUserBan(ctx context.Context, ban UserBan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.userBans[ban.BanID]; ok {
		return ErrConflict
	}
	m.userBans[ban.BanID] = ban
	return nil
}

func (m *Memory) InsertIPBan(ctx context.Context, ban IPBan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ipBans[ban.BanID]; ok {
		return ErrConflict
	}
	m.ipBans[ban.BanID] = ban
	return nil
}

func (m *Memory) InsertLicense(ctx context.Context, lic License) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.licenses[lic.LicenseKey]; ok {
		return ErrConflict
	}
	m.licenses[lic.LicenseKey] = lic
	return nil
}

// UserBans returns a snapshot of stored user bans. Test helper.
func (m *Memory) UserBans() []UserBan {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bans := make([]UserBan, 0, len(m.userBans))
	for _, b := range m.userBans {
		bans = append(bans, b)
	}
	return bans
}

// IPBans returns a snapshot of stored IP bans. Test helper.
func (m *Memory) IPBans() []IPBan {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bans := make([]IPBan, 0, len(m.ipBans))
	for _, b := range m.ipBans {
		bans = append(bans, b)
	}
	return bans
}

// Licenses returns a snapshot of stored licenses. Test helper.
func (m *Memory) Licenses() []License {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lics := make([]License, 0, len(m.licenses))
	for _, l := range m.licenses {
		lics = append(lics, l)
	}
	return lics
}
