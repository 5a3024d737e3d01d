// Package surface keeps the per-tab state of the dashboard: whether a query
// is in flight, which result is current and the tab's chart page.
package surface

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"vizinsight/cache"
	"vizinsight/models"
	"vizinsight/mounter"
)

var (
	ErrNotFound = errors.New("surface not found")
	ErrNotOwner = errors.New("surface belongs to another user")
)

// Surface is one browser tab. A surface runs at most one query at a time;
// results that finish after the surface moved on are discarded.
type Surface struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	busy       atomic.Bool
	generation atomic.Uint64

	mu      sync.RWMutex
	result  *models.QueryResult
	mounter *mounter.Mounter
}

func New(userID string, m *mounter.Mounter) *Surface {
	return &Surface{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now(),
		mounter:   m,
	}
}

// TryAcquire marks the surface busy. It returns false when a query is
// already in flight.
func (s *Surface) TryAcquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *Surface) Release() {
	s.busy.Store(false)
}

func (s *Surface) Busy() bool {
	return s.busy.Load()
}

// Generation identifies the surface's current view. Anything that
// invalidates pending work bumps it.
func (s *Surface) Generation() uint64 {
	return s.generation.Load()
}

// Commit stores result if gen is still current and reports whether it did.
// A new chart replaces the mounted one when the charts tab is open.
func (s *Surface) Commit(ctx context.Context, gen uint64, result *models.QueryResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation.Load() != gen {
		return false
	}
	s.generation.Add(1)
	s.result = result

	if s.mounter == nil {
		return true
	}
	if s.mounter.ActiveTab() == mounter.TabCharts {
		var err error
		if result.Chart != nil {
			err = s.mounter.Mount(ctx, result.Chart)
		} else {
			s.mounter.Teardown()
		}
		if err != nil {
			log.Warn().Err(err).Str("surface", s.ID).Msg("mount on commit failed")
		}
	}
	return true
}

// Result returns the last committed result, or nil.
func (s *Surface) Result() *models.QueryResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Clear drops the current result and tears down its chart. Queries still in
// flight will not be committed.
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation.Add(1)
	s.result = nil
	if s.mounter != nil {
		s.mounter.Teardown()
	}
}

// SetTab switches the active tab, mounting the current chart when the
// charts tab opens.
func (s *Surface) SetTab(ctx context.Context, tab string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.mounter == nil {
		return nil
	}
	if s.result == nil {
		return s.mounter.SetActiveTab(ctx, tab, nil)
	}
	return s.mounter.SetActiveTab(ctx, tab, s.result.Chart)
}

func (s *Surface) Mounter() *mounter.Mounter {
	return s.mounter
}

// Close tears the page down for good and invalidates pending work.
func (s *Surface) Close() {
	s.generation.Add(1)
	if s.mounter != nil {
		s.mounter.Close()
	}
}

func (s *Surface) Snapshot() models.SurfaceResponse {
	resp := models.SurfaceResponse{ID: s.ID, Busy: s.Busy()}
	if s.mounter != nil {
		resp.ActiveTab = s.mounter.ActiveTab()
		resp.State = s.mounter.State().String()
	}
	return resp
}

// Manager holds live surfaces. Idle surfaces expire and are closed.
type Manager struct {
	surfaces   *cache.Cache
	newMounter func() *mounter.Mounter
}

func NewManager(ttl time.Duration, newMounter func() *mounter.Mounter) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	m := &Manager{surfaces: cache.New(ttl), newMounter: newMounter}
	m.surfaces.OnEvicted(func(key string, value interface{}) {
		if s, ok := value.(*Surface); ok {
			log.Debug().Str("surface", key).Msg("surface closed")
			s.Close()
		}
	})
	return m
}

func (m *Manager) Create(userID string) *Surface {
	var mt *mounter.Mounter
	if m.newMounter != nil {
		mt = m.newMounter()
	}
	s := New(userID, mt)
	m.surfaces.SetDefault(s.ID, s)
	log.Debug().Str("surface", s.ID).Str("user_id", userID).Msg("surface created")
	return s
}

// Get returns the surface with id if it belongs to userID, and extends its
// lifetime.
func (m *Manager) Get(id, userID string) (*Surface, error) {
	v, ok := m.surfaces.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	s := v.(*Surface)
	if s.UserID != userID {
		return nil, ErrNotOwner
	}
	m.surfaces.Touch(id)
	return s, nil
}

// Remove closes the surface.
func (m *Manager) Remove(id, userID string) error {
	s, err := m.Get(id, userID)
	if err != nil {
		return err
	}
	// eviction callback closes it
	m.surfaces.Delete(s.ID)
	return nil
}

func (m *Manager) Len() int {
	return m.surfaces.ItemCount()
}

// Shutdown closes every surface.
func (m *Manager) Shutdown() {
	for _, v := range m.surfaces.Items() {
		v.(*Surface).Close()
	}
	m.surfaces.Flush()
}
