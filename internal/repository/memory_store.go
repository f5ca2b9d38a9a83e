package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/normalizer"

	"github.com/google/uuid"
)

// MemoryStore: 用于 DB 未就绪时的联测（BACKEND_MODE=memory）
// - 实现全部仓储接口
// - IDs 使用 uuid
// - ListRecordRows 与真实存储一致：只返回 locality_id，不带名称
type MemoryStore struct {
	mu sync.RWMutex

	records    []domain.Record
	localities map[string]domain.Locality // id -> locality
	users      map[string]domain.User
	grants     map[string]map[string]bool // userID -> localityID -> true
	levels     map[string]domain.AccessLevel
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		localities: map[string]domain.Locality{},
		users:      map[string]domain.User{},
		grants:     map[string]map[string]bool{},
		levels:     map[string]domain.AccessLevel{},
	}
}

var (
	_ RecordsRepository      = (*MemoryStore)(nil)
	_ LocalitiesRepository   = (*MemoryStore)(nil)
	_ UsersRepository        = (*MemoryStore)(nil)
	_ AccessGrantsRepository = (*MemoryStore)(nil)
	_ AccessLevelsRepository = (*MemoryStore)(nil)
)

// AsStore 以 Store 形式暴露
func (m *MemoryStore) AsStore() *Store {
	return &Store{Records: m, Localities: m, Users: m, Grants: m, AccessLevels: m}
}

// ---- records ----

func (m *MemoryStore) ListRecordRows(_ context.Context) ([]normalizer.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]normalizer.Row, 0, len(m.records))
	for _, r := range m.records {
		rows = append(rows, normalizer.ToRow(r))
	}
	return rows, nil
}

func (m *MemoryStore) GetRecordRow(_ context.Context, id string) (normalizer.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.records {
		if r.ID == id {
			return normalizer.ToRow(r), nil
		}
	}
	return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
}

func (m *MemoryStore) InsertRecord(_ context.Context, rec domain.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = uuid.NewString()
	rec.LocalityName = "" // 存储只保存 locality_id
	m.records = append(m.records, rec)
	return rec.ID, nil
}

func (m *MemoryStore) UpdateRecord(_ context.Context, rec domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].ID == rec.ID {
			rec.LocalityName = ""
			m.records[i] = rec
			return nil
		}
	}
	return fmt.Errorf("record %s: %w", rec.ID, ErrNotFound)
}

// ---- localities ----

func (m *MemoryStore) GetLocalityByName(_ context.Context, name string) (*domain.Locality, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if l, ok := m.findByName(strings.TrimSpace(name)); ok {
		return &l, nil
	}
	return nil, fmt.Errorf("locality %q: %w", name, ErrNotFound)
}

func (m *MemoryStore) GetLocalityByID(_ context.Context, id string) (*domain.Locality, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if l, ok := m.localities[id]; ok {
		return &l, nil
	}
	return nil, fmt.Errorf("locality %q: %w", id, ErrNotFound)
}

func (m *MemoryStore) ListLocalities(_ context.Context) ([]domain.Locality, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Locality, 0, len(m.localities))
	for _, l := range m.localities {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) EnsureLocality(_ context.Context, name string) (*domain.Locality, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("locality name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.findByName(name); ok {
		return &l, nil
	}
	l := domain.Locality{ID: uuid.NewString(), Name: name, Active: true}
	m.localities[l.ID] = l
	return &l, nil
}

func (m *MemoryStore) findByName(name string) (domain.Locality, bool) {
	for _, l := range m.localities {
		if l.Name == name {
			return l, true
		}
	}
	return domain.Locality{}, false
}

// ---- users / grants / levels ----

// PutUser 新增或覆盖用户（dev bootstrap 使用）
func (m *MemoryStore) PutUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// PutAccessLevel 新增或覆盖访问级别
func (m *MemoryStore) PutAccessLevel(l domain.AccessLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[l.ID] = l
}

func (m *MemoryStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if u, ok := m.users[userID]; ok {
		return &u, nil
	}
	return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
}

func (m *MemoryStore) ListGrantsByUser(_ context.Context, userID string) ([]domain.AccessGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.AccessGrant, 0, len(m.grants[userID]))
	for localityID := range m.grants[userID] {
		out = append(out, domain.AccessGrant{UserID: userID, LocalityID: localityID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalityID < out[j].LocalityID })
	return out, nil
}

func (m *MemoryStore) GrantAccess(_ context.Context, userID, localityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.grants[userID] == nil {
		m.grants[userID] = map[string]bool{}
	}
	m.grants[userID][localityID] = true
	return nil
}

func (m *MemoryStore) RevokeAccess(_ context.Context, userID, localityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.grants[userID][localityID] {
		return fmt.Errorf("grant %s/%s: %w", userID, localityID, ErrNotFound)
	}
	delete(m.grants[userID], localityID)
	return nil
}

func (m *MemoryStore) ListAccessLevels(_ context.Context) ([]domain.AccessLevel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.AccessLevel, 0, len(m.levels))
	for _, l := range m.levels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) GetAccessLevel(_ context.Context, id string) (*domain.AccessLevel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if l, ok := m.levels[id]; ok {
		return &l, nil
	}
	return nil, fmt.Errorf("access level %s: %w", id, ErrNotFound)
}
