package cluster

import "github.com/dawnzzz/rcluster/redis"

// Router is the dispatch surface common to both sharding regimes.
type Router interface {
	Add(conn redis.Connection) error
	Remove(conn redis.Connection) error
	RemoveByID(id string) error

	Connect() error
	Disconnect() error
	IsConnected() bool

	GetConnection(cmd *redis.Command) (redis.Connection, error)
	GetConnectionByID(id string) (redis.Connection, bool)
	Count() int
	Each(fn func(id string, conn redis.Connection))

	WriteCommand(cmd *redis.Command) error
	ReadResponse(cmd *redis.Command) (redis.Reply, error)
	ExecuteCommand(cmd *redis.Command) (redis.Reply, error)
}

var (
	_ Router = (*ServerRouter)(nil)
	_ Router = (*ShardRouter)(nil)
)
