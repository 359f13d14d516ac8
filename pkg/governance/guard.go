package governance

import "sync"

// reentrancyGuard rejects any governance entry point invoked while another
// call is still executing. A nested call fails immediately and never touches
// the flag belonging to the outer call; the outer call clears the flag on
// every exit path.
type reentrancyGuard struct {
	mu      sync.Mutex
	entered bool
}

func (g *reentrancyGuard) enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.entered {
		return ErrReentrantCall
	}
	g.entered = true
	return nil
}

func (g *reentrancyGuard) exit() {
	g.mu.Lock()
	g.entered = false
	g.mu.Unlock()
}
