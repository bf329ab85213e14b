package rio

import "sync"

// Guarded wraps an *Engine with a mutex for callers that need concurrent
// access. The engine itself performs no locking, by design (see the
// Engine doc); any front end that drives it from more than one
// goroutine — internal/vfs's FUSE and WebDAV handlers, in particular —
// goes through this instead of holding its own duplicate lock.
type Guarded struct {
	mu     sync.Mutex
	Engine *Engine
}

// NewGuarded wraps eng for concurrent use.
func NewGuarded(eng *Engine) *Guarded {
	return &Guarded{Engine: eng}
}

func (g *Guarded) Open(uri string, perm Permission) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Engine.Open(uri, perm)
}

func (g *Guarded) OpenAt(uri string, perm Permission, at uint64) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Engine.OpenAt(uri, perm, at)
}

func (g *Guarded) Close(h uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Engine.Close(h)
}

func (g *Guarded) CloseAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Engine.CloseAll()
}

func (g *Guarded) Pread(paddr uint64, buf []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Engine.Pread(paddr, buf)
}

func (g *Guarded) Pwrite(paddr uint64, buf []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Engine.Pwrite(paddr, buf)
}

func (g *Guarded) Map(paddr, vaddr, size uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Engine.Map(paddr, vaddr, size)
}

func (g *Guarded) Unmap(vaddr, size uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Engine.Unmap(vaddr, size)
}

func (g *Guarded) Vread(vaddr uint64, buf []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Engine.Vread(vaddr, buf)
}

func (g *Guarded) Vwrite(vaddr uint64, buf []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Engine.Vwrite(vaddr, buf)
}
