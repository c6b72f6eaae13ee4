package cluster

import (
	"github.com/dawnzzz/rcluster/redis"
	"github.com/dawnzzz/rcluster/redis/reply"
)

// fakeConn is a scripted redis.Connection used by the router tests: each
// call to ExecuteCommand consumes the next reply in the queue (or the
// zero-value "+OK" reply once the queue is drained).
type fakeConn struct {
	params    redis.Parameters
	connected bool
	replies   []redis.Reply
	idx       int
	calls     []*redis.Command
	pending   []*redis.Command
}

func newFakeConn(params redis.Parameters, replies ...redis.Reply) *fakeConn {
	return &fakeConn{params: params, replies: replies}
}

func (f *fakeConn) Connect() error {
	f.connected = true
	return nil
}

func (f *fakeConn) Disconnect() error {
	f.connected = false
	return nil
}

func (f *fakeConn) IsConnected() bool {
	return f.connected
}

func (f *fakeConn) WriteCommand(cmd *redis.Command) error {
	f.pending = append(f.pending, cmd)
	return nil
}

func (f *fakeConn) ReadResponse(cmd *redis.Command) (redis.Reply, error) {
	return f.nextReply(), nil
}

func (f *fakeConn) ExecuteCommand(cmd *redis.Command) (redis.Reply, error) {
	f.calls = append(f.calls, cmd)
	return f.nextReply(), nil
}

func (f *fakeConn) Parameters() redis.Parameters {
	return f.params
}

func (f *fakeConn) nextReply() redis.Reply {
	if f.idx < len(f.replies) {
		r := f.replies[f.idx]
		f.idx++
		return r
	}
	return reply.MakeStatusReply("OK")
}
