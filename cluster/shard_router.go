package cluster

import (
	"strconv"

	"github.com/dawnzzz/rcluster/lib/consistenthash"
	"github.com/dawnzzz/rcluster/lib/keyslot"
	"github.com/dawnzzz/rcluster/redis"
	"github.com/dawnzzz/rcluster/redis/reply"
)

// ringNode is the consistenthash.Node placed on a ShardRouter's ring; its
// identity is the connection's pool id.
type ringNode struct {
	id string
}

func (n ringNode) RingKey() string { return n.id }

// ShardRouter routes commands under the client-side sharding scheme: the
// client alone decides placement via a consistent-hash ring over an
// uncoordinated pool of servers. There is no redirection protocol in
// this regime — a reply is surfaced to the caller as-is.
type ShardRouter struct {
	pool  *connPool
	ring  *consistenthash.Ring
	table keyslot.Table

	idByConn  map[redis.Connection]string
	nextIndex int
}

// NewShardRouter builds a ShardRouter. table drives key extraction.
func NewShardRouter(table keyslot.Table) *ShardRouter {
	return &ShardRouter{
		pool:     newConnPool(),
		ring:     consistenthash.New(),
		table:    table,
		idByConn: make(map[redis.Connection]string),
	}
}

// Add inserts conn into the pool, keyed by its alias if set else the
// next numeric index, and registers it on the ring with its configured
// weight (default 1).
func (r *ShardRouter) Add(conn redis.Connection) error {
	params := conn.Parameters()
	id := params.Alias
	if id == "" {
		id = strconv.Itoa(r.nextIndex)
		r.nextIndex++
	}

	r.pool.add(id, conn)
	r.idByConn[conn] = id

	weight := params.Weight
	if weight < 1 {
		weight = 1
	}
	r.ring.Add(ringNode{id: id}, weight)
	return nil
}

// Remove drops conn from the pool and its ring entries.
func (r *ShardRouter) Remove(conn redis.Connection) error {
	id, ok := r.idByConn[conn]
	if !ok {
		return nil
	}
	return r.RemoveByID(id)
}

// RemoveByID drops the connection with the given id from the pool and
// its ring entries.
func (r *ShardRouter) RemoveByID(id string) error {
	conn, ok := r.pool.get(id)
	if !ok {
		return nil
	}
	r.pool.removeByID(id)
	r.ring.Remove(ringNode{id: id})
	delete(r.idByConn, conn)
	return nil
}

// GetConnectionByID returns the pooled connection for id, if any.
func (r *ShardRouter) GetConnectionByID(id string) (redis.Connection, bool) {
	return r.pool.get(id)
}

// Count returns the number of pooled connections.
func (r *ShardRouter) Count() int {
	return r.pool.count()
}

// Each iterates the pool in deterministic (insertion) order.
func (r *ShardRouter) Each(fn func(id string, conn redis.Connection)) {
	r.pool.each(fn)
}

// Connect opens every pooled connection that isn't already connected.
func (r *ShardRouter) Connect() error {
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
func (r *ShardRouter) Disconnect() error {
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
func (r *ShardRouter) IsConnected() bool {
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

// GetConnection returns the connection that owns cmd's routing key(s) on
// the ring. Multi-key commands must have every key land on the same
// node, else *NotSupportedError.
func (r *ShardRouter) GetConnection(cmd *redis.Command) (redis.Connection, error) {
	if h, ok := cmd.Hash(); ok {
		return r.connectionForHash(h)
	}

	keys, err := keyslot.Keys(r.table, cmd.ID(), cmd.Arguments())
	if err != nil {
		return nil, &NotSupportedError{CommandID: cmd.ID(), Reason: err.Error()}
	}

	var commonID string
	var firstHash uint32
	for i, key := range keys {
		tagged := keyslot.HashTag(key)
		h := consistenthash.HashKey(tagged)
		node, ok := r.ring.Get(h)
		if !ok {
			return nil, &ClientError{Reason: "ring has no nodes"}
		}
		id := node.(ringNode).id
		if i == 0 {
			commonID = id
			firstHash = h
		} else if id != commonID {
			return nil, &NotSupportedError{CommandID: cmd.ID(), Reason: "keys map to different nodes"}
		}
	}

	conn, ok := r.pool.get(commonID)
	if !ok {
		return nil, &ClientError{Reason: "ring node " + commonID + " not in pool"}
	}
	cmd.SetHash(firstHash)
	return conn, nil
}

func (r *ShardRouter) connectionForHash(hash uint32) (redis.Connection, error) {
	node, ok := r.ring.Get(hash)
	if !ok {
		return nil, &ClientError{Reason: "ring has no nodes"}
	}
	id := node.(ringNode).id
	conn, ok := r.pool.get(id)
	if !ok {
		return nil, &ClientError{Reason: "ring node " + id + " not in pool"}
	}
	return conn, nil
}

// GetConnectionByKey returns the connection owning key on the ring,
// after hash-tag processing, bypassing per-command routing descriptors.
func (r *ShardRouter) GetConnectionByKey(key []byte) (redis.Connection, error) {
	tagged := keyslot.HashTag(key)
	return r.connectionForHash(consistenthash.HashKey(tagged))
}

// WriteCommand routes cmd and writes it to the chosen connection without
// waiting for a reply.
func (r *ShardRouter) WriteCommand(cmd *redis.Command) error {
	conn, err := r.GetConnection(cmd)
	if err != nil {
		return err
	}
	return conn.WriteCommand(cmd)
}

// ReadResponse routes cmd (using its memoized hash) and reads the next
// reply off the chosen connection.
func (r *ShardRouter) ReadResponse(cmd *redis.Command) (redis.Reply, error) {
	conn, err := r.GetConnection(cmd)
	if err != nil {
		return nil, err
	}
	return conn.ReadResponse(cmd)
}

// ExecuteCommand routes cmd and executes it. There is no redirection
// protocol in this regime: whatever the connection replies is returned
// as-is, error or not.
func (r *ShardRouter) ExecuteCommand(cmd *redis.Command) (redis.Reply, error) {
	conn, err := r.GetConnection(cmd)
	if err != nil {
		return nil, err
	}
	return conn.ExecuteCommand(cmd)
}

// ExecuteOnNodes runs cmd on every pooled connection, preserving
// iteration order. A connection-level failure is represented as an
// error reply in its slot rather than aborting the broadcast.
func (r *ShardRouter) ExecuteOnNodes(cmd *redis.Command) []redis.Reply {
	replies := make([]redis.Reply, 0, r.pool.count())
	r.pool.each(func(_ string, conn redis.Connection) {
		rep, err := conn.ExecuteCommand(cmd)
		if err != nil {
			replies = append(replies, reply.MakeErrReply(err.Error()))
			return
		}
		replies = append(replies, rep)
	})
	return replies
}
