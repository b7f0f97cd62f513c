package store

import (
	"sync"

	"netreport/pkg/model"
)

// DefaultMemoryLimit caps the number of reports kept by MemoryStore.
const DefaultMemoryLimit = 1000

// MemoryStore is a simple in-memory implementation, intended for dev/demo.
type MemoryStore struct {
	mu      sync.RWMutex
	limit   int
	reports []model.Report          // oldest first
	latest  map[string]model.Report // deviceID -> newest report
}

// NewMemoryStore keeps at most limit reports (DefaultMemoryLimit when <= 0).
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &MemoryStore{
		limit:  limit,
		latest: make(map[string]model.Report),
	}
}

func (m *MemoryStore) SaveReport(r model.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.Snapshot = r.Snapshot.Clone()
	m.reports = append(m.reports, r)
	if len(m.reports) > m.limit {
		m.reports = append([]model.Report(nil), m.reports[len(m.reports)-m.limit:]...)
	}
	m.latest[r.DeviceID] = r
	return nil
}

func (m *MemoryStore) ListReports(limit int) ([]model.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.reports) {
		limit = len(m.reports)
	}
	out := make([]model.Report, 0, limit)
	for i := len(m.reports) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.reports[i])
	}
	return out, nil
}

func (m *MemoryStore) GetReport(id string) (model.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.reports) - 1; i >= 0; i-- {
		if m.reports[i].ID == id {
			return m.reports[i], nil
		}
	}
	return model.Report{}, ErrNotFound
}

func (m *MemoryStore) LatestForDevice(deviceID string) (model.Report, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.latest[deviceID]
	return r, ok, nil
}

func (m *MemoryStore) Close() error { return nil }
