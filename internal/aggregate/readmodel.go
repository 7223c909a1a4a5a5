package aggregate

import (
	"context"
	"sync"
)

// Loader fetches a classroom's report inputs from the external store.
type Loader interface {
	ReportInput(ctx context.Context, classroomID string) (ReportInput, error)
}

// ReadModel caches per-classroom reports and rebuilds them by full recount.
// Store change notifications call Invalidate; the next read recounts, which
// also repairs any transient inconsistency from racing attendance writes.
type ReadModel struct {
	loader Loader

	mu    sync.RWMutex
	cache map[string][]StudentReport
}

func NewReadModel(loader Loader) *ReadModel {
	return &ReadModel{loader: loader, cache: map[string][]StudentReport{}}
}

// Reports returns the classroom's report, recounting from the store on a
// cache miss.
func (m *ReadModel) Reports(ctx context.Context, classroomID string) ([]StudentReport, error) {
	m.mu.RLock()
	cached, ok := m.cache[classroomID]
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}
	in, err := m.loader.ReportInput(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	reports := BuildClassReport(in)
	m.mu.Lock()
	m.cache[classroomID] = reports
	m.mu.Unlock()
	return reports, nil
}

// Invalidate drops the cached report so the next read recounts.
func (m *ReadModel) Invalidate(classroomID string) {
	m.mu.Lock()
	delete(m.cache, classroomID)
	m.mu.Unlock()
}
