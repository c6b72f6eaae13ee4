// Package connfactory materializes backend connections from a scheme and
// a set of dial parameters, and offers a convenience constructor that
// bulk-populates a cluster router from a list of parameters.
package connfactory

import (
	"fmt"

	"github.com/dawnzzz/rcluster/redis"
)

// Initializer builds a Connection for the given parameters. It may be
// validated (e.g. dry-run dialed) at registration time by callers of
// Define, though Factory itself does not impose that.
type Initializer func(params redis.Parameters) (redis.Connection, error)

// Router is the minimal surface Factory needs from a cluster router to
// implement CreateAggregated: add connections and report an add error.
type Router interface {
	Add(conn redis.Connection) error
}

// Factory maps a scheme prefix ("tcp", "unix", ...) to the initializer
// that knows how to dial it.
type Factory struct {
	initializers map[string]Initializer
}

// New returns an empty Factory. Callers typically call Define at least
// once before Create.
func New() *Factory {
	return &Factory{initializers: make(map[string]Initializer)}
}

// Define registers (or replaces) the initializer for scheme.
func (f *Factory) Define(scheme string, init Initializer) {
	f.initializers[scheme] = init
}

// Undefine removes scheme's initializer, if any.
func (f *Factory) Undefine(scheme string) {
	delete(f.initializers, scheme)
}

// Create dials a new connection for params using scheme's initializer.
func (f *Factory) Create(scheme string, params redis.Parameters) (redis.Connection, error) {
	init, ok := f.initializers[scheme]
	if !ok {
		return nil, fmt.Errorf("connfactory: no initializer registered for scheme %q", scheme)
	}
	return init(params)
}

// CreateAggregated dials one connection per params entry using scheme's
// initializer and adds each to router, stopping at the first error.
func (f *Factory) CreateAggregated(router Router, scheme string, params []redis.Parameters) error {
	for _, p := range params {
		conn, err := f.Create(scheme, p)
		if err != nil {
			return err
		}
		if err := router.Add(conn); err != nil {
			return err
		}
	}
	return nil
}
