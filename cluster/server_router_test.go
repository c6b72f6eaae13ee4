package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dawnzzz/rcluster/connfactory"
	"github.com/dawnzzz/rcluster/lib/keyslot"
	"github.com/dawnzzz/rcluster/redis"
	"github.com/dawnzzz/rcluster/redis/reply"
)

func newTestServerRouter() (*ServerRouter, *connfactory.Factory) {
	factory := connfactory.New()
	factory.Define("tcp", func(params redis.Parameters) (redis.Connection, error) {
		return newFakeConn(params), nil
	})
	return NewServerRouter(factory, "tcp", keyslot.DefaultTable, 16), factory
}

func TestServerRouterMovedRedirection(t *testing.T) {
	router, _ := newTestServerRouter()

	a := newFakeConn(redis.Parameters{Host: "10.0.0.1", Port: 6379},
		reply.MakeErrReply("MOVED 3000 10.0.0.2:6379"))
	require.NoError(t, router.Add(a))
	require.NoError(t, router.SetSlots(0, 5460, "10.0.0.1:6379"))

	cmd := redis.NewCommand("GET", []byte("somekeyinsl0t3000ish"))
	// force the command's slot to 3000 for a deterministic scenario
	cmd.SetHash(3000)

	rep, err := router.ExecuteCommand(cmd)
	require.NoError(t, err)
	require.Equal(t, "OK", rep.DataString())

	target, ok := router.GetConnectionByID("10.0.0.2:6379")
	require.True(t, ok, "MOVED target was not added to the pool")
	require.True(t, target.IsConnected(), "MOVED target was not connected")

	// second command to the same slot goes directly to the new node, no
	// further redirection.
	cmd2 := redis.NewCommand("GET", []byte("anotherkey"))
	cmd2.SetHash(3000)
	_, err = router.ExecuteCommand(cmd2)
	require.NoError(t, err)

	tf := target.(*fakeConn)
	require.Len(t, tf.calls, 2, "expected 2 calls on the moved-to target")
	require.Len(t, a.calls, 1, "expected exactly 1 call on the original owner")
}

func TestServerRouterMovedIdempotent(t *testing.T) {
	router, _ := newTestServerRouter()
	require.NoError(t, router.SetSlots(0, 16383, "a:1"))
	a := newFakeConn(redis.Parameters{Host: "a", Port: 1})
	require.NoError(t, router.Add(a))

	require.NoError(t, router.redirectForTest("MOVED 3000 b:2"))
	first := router.slotsMap[3000]

	require.NoError(t, router.redirectForTest("MOVED 3000 b:2"))
	second := router.slotsMap[3000]

	require.Equal(t, first, second, "MOVED is not idempotent")
}

func TestServerRouterAskDoesNotPersist(t *testing.T) {
	router, _ := newTestServerRouter()
	require.NoError(t, router.SetSlots(0, 16383, "a:1"))
	a := newFakeConn(redis.Parameters{Host: "a", Port: 1}, reply.MakeErrReply("ASK 3000 b:2"))
	require.NoError(t, router.Add(a))

	cmd := redis.NewCommand("GET", []byte("k"))
	cmd.SetHash(3000)
	_, err := router.ExecuteCommand(cmd)
	require.NoError(t, err)

	require.Equal(t, "a:1", router.slotsMap[3000], "ASK must not rewrite slotsMap")

	// the slot cache still points at a: it was populated by the normal
	// slotsMap-backed lookup before the ASK reply arrived, and ASK
	// handling must not redirect it at b.
	cached, ok := router.slotsCache[3000]
	require.True(t, ok)
	require.Equal(t, redis.Connection(a), cached, "ASK must not rewrite the slots cache to the ask-target")

	target, ok := router.GetConnectionByID("b:2")
	require.True(t, ok, "ASK target was not added to pool")

	tf := target.(*fakeConn)
	require.Len(t, tf.calls, 2, "expected ASKING preamble + command on ASK target")
	require.Equal(t, "ASKING", tf.calls[0].ID(), "expected ASKING preamble first")

	// next command for the same slot must still go through a's normal routing
	cmd2 := redis.NewCommand("GET", []byte("k2"))
	cmd2.SetHash(3000)
	_, err = router.ExecuteCommand(cmd2)
	require.NoError(t, err)
	require.Len(t, a.calls, 2, "expected the original owner to still handle slot 3000")
}

func TestServerRouterMultiKeyRefusal(t *testing.T) {
	router, _ := newTestServerRouter()
	a := newFakeConn(redis.Parameters{Host: "a", Port: 1})
	require.NoError(t, router.Add(a))
	require.NoError(t, router.SetSlots(0, 16383, a.Parameters().ID()))

	cmd := redis.NewCommand("MSET", []byte("foo"), []byte("v1"), []byte("bar"), []byte("v2"))
	_, err := router.GetConnection(cmd)
	require.Error(t, err)
	require.IsType(t, &NotSupportedError{}, err)
}

func TestServerRouterSetSlotsValidation(t *testing.T) {
	router, _ := newTestServerRouter()

	require.Error(t, router.SetSlots(-1, 100, "a:1"), "expected error for negative slot")
	require.Error(t, router.SetSlots(0, 16384, "a:1"), "expected error for slot >= 16384")
	require.Error(t, router.SetSlots(100, 50, "a:1"), "expected error for last < first")
	require.NoError(t, router.SetSlots(0, 16383, "a:1"), "expected full range to validate")
}

func TestServerRouterMemoization(t *testing.T) {
	router, _ := newTestServerRouter()
	a := newFakeConn(redis.Parameters{Host: "a", Port: 1})
	require.NoError(t, router.Add(a))
	require.NoError(t, router.SetSlots(0, 16383, a.Parameters().ID()))

	cmd := redis.NewCommand("GET", []byte("mykey"))
	c1, err := router.GetConnection(cmd)
	require.NoError(t, err)
	c2, err := router.GetConnection(cmd)
	require.NoError(t, err)
	require.Equal(t, c1, c2, "two successive GetConnection calls for the same command must agree")
}

// redirectForTest exercises the private redirect path directly for tests
// that need to assert on slotsMap/slotsCache without depending on a
// specific fakeConn scripted reply sequence.
func (r *ServerRouter) redirectForTest(msg string) error {
	cmd := redis.NewCommand("GET", []byte("k"))
	cmd.SetHash(3000)
	_, err := r.redirect(msg, cmd, 0)
	return err
}
