package cluster

import (
	"math/rand"
	"net"
	"strconv"
	"strings"

	"github.com/dawnzzz/rcluster/connfactory"
	"github.com/dawnzzz/rcluster/lib/hashslot"
	"github.com/dawnzzz/rcluster/lib/keyslot"
	"github.com/dawnzzz/rcluster/logger"
	"github.com/dawnzzz/rcluster/redis"
)

// ServerRouter routes commands under the server-authoritative sharding
// scheme: a slot map is learned incrementally from MOVED/ASK
// redirections and from explicit SetSlots calls, never refreshed
// proactively.
type ServerRouter struct {
	pool *connPool

	slotsMap   map[uint16]string           // slot -> connection id, sparse
	slotsCache map[uint16]redis.Connection // slot -> connection handle, memoization

	table   keyslot.Table
	factory *connfactory.Factory
	scheme  string

	maxRedirects int
}

// NewServerRouter builds a ServerRouter. table drives key extraction;
// factory materializes connections named in MOVED/ASK replies for
// addresses not already in the pool, dialed with scheme (e.g. "tcp").
// maxRedirects bounds MOVED/ASK chain depth per execution.
func NewServerRouter(factory *connfactory.Factory, scheme string, table keyslot.Table, maxRedirects int) *ServerRouter {
	if maxRedirects <= 0 {
		maxRedirects = 16
	}
	return &ServerRouter{
		pool:         newConnPool(),
		slotsMap:     make(map[uint16]string),
		slotsCache:   make(map[uint16]redis.Connection),
		table:        table,
		factory:      factory,
		scheme:       scheme,
		maxRedirects: maxRedirects,
	}
}

// Add inserts conn into the pool, keyed by its canonical id.
func (r *ServerRouter) Add(conn redis.Connection) error {
	r.pool.add(conn.Parameters().ID(), conn)
	return nil
}

// Remove drops conn from the pool. Slot cache entries pointing to it are
// left as-is; they self-correct on the next MOVED for that slot.
func (r *ServerRouter) Remove(conn redis.Connection) error {
	return r.RemoveByID(conn.Parameters().ID())
}

// RemoveByID drops the connection with the given id from the pool.
func (r *ServerRouter) RemoveByID(id string) error {
	r.pool.removeByID(id)
	return nil
}

// GetConnectionByID returns the pooled connection for id, if any.
func (r *ServerRouter) GetConnectionByID(id string) (redis.Connection, bool) {
	return r.pool.get(id)
}

// Count returns the number of pooled connections.
func (r *ServerRouter) Count() int {
	return r.pool.count()
}

// Each iterates the pool in deterministic (insertion) order.
func (r *ServerRouter) Each(fn func(id string, conn redis.Connection)) {
	r.pool.each(fn)
}

// Connect opens every pooled connection that isn't already connected.
func (r *ServerRouter) Connect() error {
	var firstErr error
	r.pool.each(func(_ string, conn redis.Connection) {
		if conn.IsConnected() {
			return
		}
		if err := conn.Connect(); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

// Disconnect closes every pooled connection.
func (r *ServerRouter) Disconnect() error {
	var firstErr error
	r.pool.each(func(_ string, conn redis.Connection) {
		if err := conn.Disconnect(); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

// IsConnected reports whether the pool is non-empty and every pooled
// connection is connected.
func (r *ServerRouter) IsConnected() bool {
	if r.pool.count() == 0 {
		return false
	}
	connected := true
	r.pool.each(func(_ string, conn redis.Connection) {
		if !conn.IsConnected() {
			connected = false
		}
	})
	return connected
}

// SetSlots bulk-asserts that slots [first, last] map to connID,
// overwriting any prior mapping. Both endpoints must lie in
// [0, hashslot.NumSlots) and last must be >= first.
func (r *ServerRouter) SetSlots(first, last int, connID string) error {
	if first < 0 || first >= hashslot.NumSlots || last < 0 || last >= hashslot.NumSlots {
		return &ClientError{Reason: "SetSlots: slot out of range [0, " + strconv.Itoa(hashslot.NumSlots-1) + "]"}
	}
	if last < first {
		return &ClientError{Reason: "SetSlots: last < first"}
	}
	for s := first; s <= last; s++ {
		slot := uint16(s)
		r.slotsMap[slot] = connID
		delete(r.slotsCache, slot)
	}
	return nil
}

// getHash returns the command's memoized slot, computing and memoizing
// it first if unset. It fails with *NotSupportedError for unroutable or
// multi-key-spanning commands.
func (r *ServerRouter) getHash(cmd *redis.Command) (uint16, error) {
	if h, ok := cmd.Hash(); ok {
		return uint16(h), nil
	}

	keys, err := keyslot.Keys(r.table, cmd.ID(), cmd.Arguments())
	if err != nil {
		return 0, &NotSupportedError{CommandID: cmd.ID(), Reason: err.Error()}
	}

	var slot uint16
	for i, key := range keys {
		tagged := keyslot.HashTag(key)
		s := hashslot.Slot(tagged)
		if i == 0 {
			slot = s
		} else if s != slot {
			return 0, &NotSupportedError{CommandID: cmd.ID(), Reason: "keys span multiple slots"}
		}
	}

	cmd.SetHash(uint32(slot))
	return slot, nil
}

// GetConnection returns the connection that should handle cmd, per the
// five-step algorithm: memoized hash, slot cache, slot map, or a random
// fallback that the server will correct via redirection.
func (r *ServerRouter) GetConnection(cmd *redis.Command) (redis.Connection, error) {
	slot, err := r.getHash(cmd)
	if err != nil {
		return nil, err
	}

	if conn, ok := r.slotsCache[slot]; ok {
		return conn, nil
	}

	if id, ok := r.slotsMap[slot]; ok {
		if conn, ok := r.pool.get(id); ok {
			r.slotsCache[slot] = conn
			return conn, nil
		}
	}

	conn, err := r.randomConnection()
	if err != nil {
		return nil, err
	}
	r.slotsCache[slot] = conn
	return conn, nil
}

func (r *ServerRouter) randomConnection() (redis.Connection, error) {
	if r.pool.count() == 0 {
		return nil, &ClientError{Reason: "no connections in pool"}
	}
	pick := rand.Intn(r.pool.count())
	i := 0
	var chosen redis.Connection
	r.pool.each(func(_ string, conn redis.Connection) {
		if i == pick {
			chosen = conn
		}
		i++
	})
	return chosen, nil
}

// WriteCommand routes cmd and writes it to the chosen connection without
// waiting for a reply.
func (r *ServerRouter) WriteCommand(cmd *redis.Command) error {
	conn, err := r.GetConnection(cmd)
	if err != nil {
		return err
	}
	return conn.WriteCommand(cmd)
}

// ReadResponse routes cmd (using its memoized hash) and reads the next
// reply off the chosen connection.
func (r *ServerRouter) ReadResponse(cmd *redis.Command) (redis.Reply, error) {
	conn, err := r.GetConnection(cmd)
	if err != nil {
		return nil, err
	}
	return conn.ReadResponse(cmd)
}

// ExecuteCommand routes cmd, executes it, and transparently follows any
// MOVED/ASK redirection the reply carries, up to maxRedirects deep.
func (r *ServerRouter) ExecuteCommand(cmd *redis.Command) (redis.Reply, error) {
	conn, err := r.GetConnection(cmd)
	if err != nil {
		return nil, err
	}
	return r.executeOn(conn, cmd, 0)
}

func (r *ServerRouter) executeOn(conn redis.Connection, cmd *redis.Command, depth int) (redis.Reply, error) {
	rep, err := conn.ExecuteCommand(cmd)
	if err != nil {
		return nil, err
	}

	errReply, ok := rep.(redis.ErrorReply)
	if !ok {
		return rep, nil
	}

	msg := errReply.Error()
	if !strings.HasPrefix(msg, "MOVED ") && !strings.HasPrefix(msg, "ASK ") {
		return rep, nil
	}

	if depth >= r.maxRedirects {
		return nil, &ClientError{Reason: "redirection loop exceeded max depth " + strconv.Itoa(r.maxRedirects)}
	}

	return r.redirect(msg, cmd, depth)
}

func (r *ServerRouter) redirect(msg string, cmd *redis.Command, depth int) (redis.Reply, error) {
	kind, slot, addr, err := parseRedirect(msg)
	if err != nil {
		return nil, err
	}

	target, err := r.resolveTarget(addr)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "MOVED":
		logger.Infof("cluster: slot %d moved to %s", slot, addr)
		r.slotsMap[slot] = addr
		r.slotsCache[slot] = target
		return r.executeOn(target, cmd, depth+1)
	case "ASK":
		logger.Debugf("cluster: slot %d asking %s", slot, addr)
		if _, err := target.ExecuteCommand(redis.NewCommand("ASKING")); err != nil {
			return nil, err
		}
		return target.ExecuteCommand(cmd)
	default:
		return nil, &ClientError{Reason: "unexpected redirection prefix in: " + msg}
	}
}

// resolveTarget returns the pooled connection for addr, dialing and
// pooling a fresh one via the factory if addr is not yet known.
func (r *ServerRouter) resolveTarget(addr string) (redis.Connection, error) {
	if conn, ok := r.pool.get(addr); ok {
		return conn, nil
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, &ClientError{Reason: "malformed host:port in redirection: " + addr}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, &ClientError{Reason: "malformed port in redirection: " + addr}
	}

	conn, err := r.factory.Create(r.scheme, redis.Parameters{Host: host, Port: port})
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(); err != nil {
		return nil, err
	}

	r.pool.add(addr, conn)
	logger.Infof("cluster: materialized new connection to %s", addr)
	return conn, nil
}

// parseRedirect splits a MOVED/ASK error message ("MOVED 3999
// 127.0.0.1:7001") into its kind, slot number and target address.
func parseRedirect(msg string) (kind string, slot uint16, addr string, err error) {
	first := strings.IndexByte(msg, ' ')
	if first < 0 {
		return "", 0, "", &ClientError{Reason: "malformed redirection reply: " + msg}
	}
	kind = msg[:first]
	rest := msg[first+1:]

	second := strings.IndexByte(rest, ' ')
	if second < 0 {
		return "", 0, "", &ClientError{Reason: "malformed redirection reply: " + msg}
	}
	slotStr := rest[:second]
	addr = rest[second+1:]

	n, convErr := strconv.Atoi(slotStr)
	if convErr != nil || n < 0 || n >= hashslot.NumSlots {
		return "", 0, "", &ClientError{Reason: "malformed slot in redirection reply: " + msg}
	}

	return kind, uint16(n), addr, nil
}
