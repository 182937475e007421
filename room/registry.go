package room

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Registry maps poll codes to rooms. Rooms are created lazily on first
// reference and swept once they have been empty past the idle window.
// Creation and removal of a code are serialized by the registry mutex.
type Registry struct {
	encode Encoder
	idle   time.Duration

	mtx   sync.Mutex
	rooms map[string]*Room

	done     chan struct{}
	stopOnce sync.Once
}

// NewRegistry starts a registry whose janitor runs every sweep
// interval. Close must be called to stop the janitor.
func NewRegistry(encode Encoder, idle, sweep time.Duration) *Registry {
	g := &Registry{
		encode: encode,
		idle:   idle,
		rooms:  make(map[string]*Room),
		done:   make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.sweep(time.Now())
			case <-g.done:
				return
			}
		}
	}()

	return g
}

// GetOrCreate resolves code to its room, creating it if absent.
// Concurrent first-time lookups for one code yield the same instance.
func (g *Registry) GetOrCreate(code string) *Room {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	r, ok := g.rooms[code]
	if !ok {
		r = newRoom(code, g.encode)
		g.rooms[code] = r
		log.Debugf("room=%s created", code)
	}
	return r
}

// Get resolves code without creating.
func (g *Registry) Get(code string) (*Room, bool) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	r, ok := g.rooms[code]
	return r, ok
}

// Remove drops the room for code, closing it against late attaches.
func (g *Registry) Remove(code string) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	g.removeLocked(code)
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	return len(g.rooms)
}

// Close stops the janitor.
func (g *Registry) Close() {
	g.stopOnce.Do(func() { close(g.done) })
}

func (g *Registry) removeLocked(code string) {
	if r, ok := g.rooms[code]; ok {
		r.close()
		delete(g.rooms, code)
	}
}

func (g *Registry) sweep(now time.Time) {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	for code, r := range g.rooms {
		if r.expired(now, g.idle) {
			log.Debugf("room=%s expired, removing", code)
			g.removeLocked(code)
		}
	}
}
