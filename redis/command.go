package redis

// Command is an outgoing command: an identifier plus its argument list,
// with a routing-hash slot that the core computes once and memoizes for
// the lifetime of a single execution. Two successive routing decisions
// for the same Command must therefore agree, per the memoization
// invariant in the routing core's spec.
type Command struct {
	id   string
	args [][]byte
	hash *uint32
}

// NewCommand builds a Command from an id and its argument list. args is
// not copied; callers must not mutate it after handing it to a router.
func NewCommand(id string, args ...[]byte) *Command {
	return &Command{id: id, args: args}
}

// ID returns the command's identifier, e.g. "GET", "MSET".
func (c *Command) ID() string {
	return c.id
}

// Arguments returns the command's argument list in order.
func (c *Command) Arguments() [][]byte {
	return c.args
}

// Hash returns the memoized routing hash and whether it has been set.
func (c *Command) Hash() (uint32, bool) {
	if c.hash == nil {
		return 0, false
	}
	return *c.hash, true
}

// SetHash memoizes the routing hash on the command. Once set it is never
// recomputed for this Command instance.
func (c *Command) SetHash(hash uint32) {
	c.hash = &hash
}
