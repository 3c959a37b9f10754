package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"portal/cmd/identity/ids"
)

// MemoryStore keeps the catalog in process.
type MemoryStore struct {
	mu         sync.RWMutex
	courses    []Course
	researches []Research
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) ListCourses(context.Context) ([]Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Course(nil), m.courses...)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryStore) CreateCourse(_ context.Context, c Course) (Course, error) {
	c.Code = normalizeCode(c.Code)
	if c.Code == "" || c.Title == "" {
		return Course{}, ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.courses {
		if existing.Code == c.Code {
			return Course{}, ErrConflict
		}
	}

	c.CreatedAt = m.now().UTC()
	id, err := ids.NewULID(c.CreatedAt)
	if err != nil {
		return Course{}, err
	}
	c.ID = id
	m.courses = append(m.courses, c)
	return c, nil
}

func (m *MemoryStore) ListResearches(_ context.Context, ownerID string) ([]Research, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Research{}
	for _, r := range m.researches {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CreateResearch(_ context.Context, r Research) (Research, error) {
	if r.OwnerID == "" || r.Title == "" {
		return Research{}, ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r.CreatedAt = m.now().UTC()
	id, err := ids.NewULID(r.CreatedAt)
	if err != nil {
		return Research{}, err
	}
	r.ID = id
	m.researches = append(m.researches, r)
	return r, nil
}
