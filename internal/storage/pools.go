package storage

import (
	"sync"

	"proxywarden/internal/domain"
	"proxywarden/internal/support"
)

// Pools holds the confirmed-live proxies of every type. A type becomes armed
// once its existing pool has been re-validated; only armed types are ever
// written back to disk.
type Pools struct {
	mu    sync.RWMutex
	sets  map[domain.ProxyType]map[string]struct{}
	armed map[domain.ProxyType]bool
}

func NewPools() *Pools {
	return &Pools{
		sets:  make(map[domain.ProxyType]map[string]struct{}),
		armed: make(map[domain.ProxyType]bool),
	}
}

// Add inserts proxy and reports whether it was new.
func (p *Pools) Add(t domain.ProxyType, proxy string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set := p.setLocked(t)
	if _, ok := set[proxy]; ok {
		return false
	}
	set[proxy] = struct{}{}
	return true
}

func (p *Pools) AddAll(t domain.ProxyType, proxies map[string]struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set := p.setLocked(t)
	for proxy := range proxies {
		set[proxy] = struct{}{}
	}
}

func (p *Pools) Has(t domain.ProxyType, proxy string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.sets[t][proxy]
	return ok
}

func (p *Pools) Len(t domain.ProxyType) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sets[t])
}

// Snapshot returns the pool of t sorted.
func (p *Pools) Snapshot(t domain.ProxyType) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return support.SortedProxies(p.sets[t])
}

func (p *Pools) Arm(t domain.ProxyType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed[t] = true
}

func (p *Pools) Armed(t domain.ProxyType) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.armed[t]
}

func (p *Pools) setLocked(t domain.ProxyType) map[string]struct{} {
	set, ok := p.sets[t]
	if !ok {
		set = make(map[string]struct{})
		p.sets[t] = set
	}
	return set
}
