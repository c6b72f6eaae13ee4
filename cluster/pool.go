package cluster

import "github.com/dawnzzz/rcluster/redis"

// connPool is a small ordered map from connection id to connection,
// shared by both router flavors so pool iteration order is deterministic
// per router instance (insertion order), as required for admin tooling.
type connPool struct {
	order []string
	byID  map[string]redis.Connection
}

func newConnPool() *connPool {
	return &connPool{byID: make(map[string]redis.Connection)}
}

func (p *connPool) add(id string, conn redis.Connection) {
	if _, exists := p.byID[id]; !exists {
		p.order = append(p.order, id)
	}
	p.byID[id] = conn
}

func (p *connPool) removeByID(id string) {
	if _, ok := p.byID[id]; !ok {
		return
	}
	delete(p.byID, id)
	for i, existing := range p.order {
		if existing == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *connPool) get(id string) (redis.Connection, bool) {
	c, ok := p.byID[id]
	return c, ok
}

func (p *connPool) count() int {
	return len(p.order)
}

// each iterates the pool in deterministic (insertion) order.
func (p *connPool) each(fn func(id string, conn redis.Connection)) {
	for _, id := range p.order {
		fn(id, p.byID[id])
	}
}
