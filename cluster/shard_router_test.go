package cluster

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dawnzzz/rcluster/lib/keyslot"
	"github.com/dawnzzz/rcluster/redis"
	"github.com/dawnzzz/rcluster/redis/reply"
)

func TestShardRouterBasicRouting(t *testing.T) {
	router := NewShardRouter(keyslot.DefaultTable)
	a := newFakeConn(redis.Parameters{Host: "a", Port: 1})
	b := newFakeConn(redis.Parameters{Host: "b", Port: 2, Weight: 2})
	require.NoError(t, router.Add(a))
	require.NoError(t, router.Add(b))

	cmd := redis.NewCommand("GET", []byte("mykey"))
	c1, err := router.GetConnection(cmd)
	require.NoError(t, err)
	c2, err := router.GetConnection(cmd)
	require.NoError(t, err)
	require.Equal(t, c1, c2, "GetConnection must be memoized on the command")
}

func TestShardRouterMultiKeyRefusal(t *testing.T) {
	router := NewShardRouter(keyslot.DefaultTable)
	for i := 0; i < 8; i++ {
		require.NoError(t, router.Add(newFakeConn(redis.Parameters{Host: fmt.Sprintf("h%d", i), Port: i})))
	}

	cmd := redis.NewCommand("MSET", []byte("foo"), []byte("v1"), []byte("bar"), []byte("v2"))
	_, err := router.GetConnection(cmd)
	require.Error(t, err, "expected NotSupportedError when keys map to different nodes")
}

func TestShardRouterNoRedirection(t *testing.T) {
	router := NewShardRouter(keyslot.DefaultTable)
	a := newFakeConn(redis.Parameters{Alias: "a"}, reply.MakeErrReply("MOVED 3000 b:2"))
	require.NoError(t, router.Add(a))

	// server-error-shaped replies are surfaced as-is, never intercepted.
	cmd := redis.NewCommand("GET", []byte("k"))
	rep, err := router.ExecuteCommand(cmd)
	require.NoError(t, err)
	require.Equal(t, "MOVED 3000 b:2", rep.DataString())
}

func TestShardRouterExecuteOnNodes(t *testing.T) {
	router := NewShardRouter(keyslot.DefaultTable)
	a := newFakeConn(redis.Parameters{Alias: "a"})
	b := newFakeConn(redis.Parameters{Alias: "b"})
	require.NoError(t, router.Add(a))
	require.NoError(t, router.Add(b))

	replies := router.ExecuteOnNodes(redis.NewCommand("PING"))
	require.Len(t, replies, 2)
	for _, r := range replies {
		require.Equal(t, "OK", r.DataString())
	}
}

func TestShardRouterRemove(t *testing.T) {
	router := NewShardRouter(keyslot.DefaultTable)
	a := newFakeConn(redis.Parameters{Alias: "a"})
	require.NoError(t, router.Add(a))
	require.Equal(t, 1, router.Count())

	require.NoError(t, router.Remove(a))
	require.Equal(t, 0, router.Count())
	require.True(t, router.ring.IsEmpty(), "removing the only node should empty the ring")
}

func TestShardRouterGetConnectionByKey(t *testing.T) {
	router := NewShardRouter(keyslot.DefaultTable)
	a := newFakeConn(redis.Parameters{Alias: "a"})
	require.NoError(t, router.Add(a))

	conn, err := router.GetConnectionByKey([]byte("{tag}suffix"))
	require.NoError(t, err)
	require.Equal(t, a, conn, "single-node ring must route every key to that node")
}
