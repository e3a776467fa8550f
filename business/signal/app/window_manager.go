package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bud42069/Arbeit-Trage/business/signal/domain"
)

// WindowManager owns one open Window per asset, closing and replacing it
// once it has been idle for 2x windowGrace - grounded directly on
// original_source's WindowManager.get_or_create_window.
type WindowManager struct {
	mu          sync.Mutex
	windowGrace time.Duration
	current     map[string]*domain.Window
	lastSeen    map[string]time.Time // asset -> latest activity on its open window
	closed      []*domain.Window
}

// NewWindowManager builds a WindowManager with windowGrace as the
// single-grace-period unit (the engine closes a window after 2x this,
// per the original's timedelta(seconds=self.window_grace_sec * 2)).
func NewWindowManager(windowGrace time.Duration) *WindowManager {
	return &WindowManager{
		windowGrace: windowGrace,
		current:     make(map[string]*domain.Window),
		lastSeen:    make(map[string]time.Time),
	}
}

// GetOrCreate returns asset's open window, closing and archiving the
// existing one first if it has seen no activity for more than 2x
// windowGrace. Every call counts as activity on the returned window.
func (m *WindowManager) GetOrCreate(asset string, now time.Time) *domain.Window {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.current[asset]; ok {
		if now.Sub(m.lastSeen[asset]) > 2*m.windowGrace {
			w.Close(now)
			m.closed = append(m.closed, w)
			delete(m.current, asset)
		} else {
			m.lastSeen[asset] = now
			return w
		}
	}

	w := &domain.Window{
		ID:      uuid.NewString(),
		Asset:   asset,
		StartTS: now,
	}
	m.current[asset] = w
	m.lastSeen[asset] = now
	return w
}

// Closed returns every window this manager has archived, oldest first.
func (m *WindowManager) Closed() []*domain.Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Window, len(m.closed))
	copy(out, m.closed)
	return out
}
