// Package pool implements a small idle/active connection pool: a bounded
// number of idle items sit in a channel, a bounded number may be active
// at once, and a liveness check discards stale items on checkout.
package pool

import (
	"errors"
	"sync"
)

type (
	// FactoryFunc creates a new pooled item.
	FactoryFunc func() (interface{}, error)
	// FinalizerFunc releases a pooled item for good.
	FinalizerFunc func(x interface{})
	// CheckAliveFunc reports whether a pooled item is still usable.
	CheckAliveFunc func(x interface{}) bool
)

var (
	// ErrClosed is returned by Get once the pool has been closed.
	ErrClosed = errors.New("pool closed")
	// ErrMaxActive is returned by Get when the active-connection cap is reached.
	ErrMaxActive = errors.New("active connections reached max num")
)

// Config bounds the pool's idle and active connection counts.
type Config struct {
	MaxIdleNum   int
	MaxActiveNum int
	MaxRetryNum  int
}

// Pool is a generic idle/active item pool.
type Pool struct {
	Config

	factory    FactoryFunc
	finalizer  FinalizerFunc
	checkAlive CheckAliveFunc

	idles  chan interface{}
	active int
	closed bool

	mu sync.Mutex
}

// New builds a Pool from its lifecycle callbacks and bounds.
func New(factory FactoryFunc, finalizer FinalizerFunc, checkAlive CheckAliveFunc, cfg Config) *Pool {
	return &Pool{
		Config:     cfg,
		factory:    factory,
		finalizer:  finalizer,
		checkAlive: checkAlive,
		idles:      make(chan interface{}, cfg.MaxIdleNum),
	}
}

// Get returns an idle item if one is alive, else creates a new one,
// subject to MaxActiveNum.
func (p *Pool) Get() (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	select {
	case item := <-p.idles:
		if !p.checkAlive(item) {
			var err error
			item, err = p.newItem()
			if err != nil {
				return nil, err
			}
		}
		p.active++
		return item, nil
	default:
		item, err := p.newItem()
		if err != nil {
			return nil, err
		}
		p.active++
		return item, nil
	}
}

// caller must hold p.mu.
func (p *Pool) newItem() (interface{}, error) {
	if p.active >= p.MaxActiveNum {
		return nil, ErrMaxActive
	}
	var err error
	for i := 0; i < p.MaxRetryNum; i++ {
		var item interface{}
		item, err = p.factory()
		if err == nil {
			return item, nil
		}
	}
	return nil, err
}

// Put returns an item to the idle pool, or finalizes it if the idle pool
// is full or the pool has been closed.
func (p *Pool) Put(x interface{}) {
	if x == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.finalizer(x)
		p.active--
		return
	}

	select {
	case p.idles <- x:
		p.active--
	default:
		p.finalizer(x)
		p.active--
	}
}

// Close closes the pool and finalizes every idle item. Active items
// finalize when returned via Put.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.idles)
	for item := range p.idles {
		p.finalizer(item)
		p.active--
	}
}
