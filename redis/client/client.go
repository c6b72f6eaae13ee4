// Package client implements a TCP-backed redis.Connection. connfactory
// does not register it on its own: a caller installs it with
// Factory.Define, as cmd/rcluster-cli does for the "tcp" scheme.
// It mirrors the teacher's asynchronous write/read split: one goroutine
// drains outgoing commands onto the socket, another decodes replies off
// it, and callers block on a per-command wait until their reply arrives.
package client

import (
	"errors"
	"net"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dawnzzz/rcluster/lib/sync/wait"
	"github.com/dawnzzz/rcluster/logger"
	"github.com/dawnzzz/rcluster/redis"
	"github.com/dawnzzz/rcluster/redis/reply"
)

const (
	created = iota
	running
	closed
)

const (
	chanSize = 256
	maxWait  = 3 * time.Second
)

// Client is a single TCP connection to a backend node.
type Client struct {
	conn   net.Conn
	addr   string
	params redis.Parameters

	pendingReqs chan *request // requests waiting to be written
	correlate   chan *request // requests written, waiting for their reply in FIFO order
	ticker      *time.Ticker

	status  int32
	working *sync.WaitGroup

	keepalive time.Duration

	inflightMu sync.Mutex
	inflight   map[*redis.Command]*request // handed off from WriteCommand to the matching ReadResponse
}

type request struct {
	args    [][]byte
	reply   redis.Reply
	waiting *wait.Wait
	err     error
}

// New builds a Client for params without dialing. Call Connect to
// establish the TCP connection and start its background goroutines.
func New(params redis.Parameters, keepaliveSeconds int) *Client {
	return &Client{
		addr:        params.Host + ":" + strconv.Itoa(params.Port),
		params:      params,
		pendingReqs: make(chan *request, chanSize),
		correlate:   make(chan *request, chanSize),
		working:     &sync.WaitGroup{},
		keepalive:   time.Second * time.Duration(keepaliveSeconds),
		inflight:    make(map[*redis.Command]*request),
	}
}

// Connect dials the backend, starts the write/read goroutines and, if a
// password is configured, sends AUTH before returning.
func (c *Client) Connect() error {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return err
	}
	c.conn = conn

	go c.handleWrite()
	go c.handleRead()

	if c.keepalive > 0 {
		c.ticker = time.NewTicker(c.keepalive / 2)
		go c.heartbeat()
	}

	atomic.StoreInt32(&c.status, running)

	if c.params.Password != "" {
		cmd := redis.NewCommand("AUTH", []byte(c.params.Password))
		r, err := c.ExecuteCommand(cmd)
		if err != nil {
			_ = c.Disconnect()
			return err
		}
		if errReply, ok := r.(redis.ErrorReply); ok {
			_ = c.Disconnect()
			return errors.New("AUTH failed: " + errReply.Error())
		}
	}

	return nil
}

// Disconnect stops the background goroutines and closes the socket.
func (c *Client) Disconnect() error {
	if !atomic.CompareAndSwapInt32(&c.status, running, closed) {
		atomic.StoreInt32(&c.status, closed)
	}
	if c.ticker != nil {
		c.ticker.Stop()
	}
	close(c.pendingReqs)
	c.working.Wait()

	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	return err
}

// IsConnected reports whether the client is in the running state.
func (c *Client) IsConnected() bool {
	return atomic.LoadInt32(&c.status) == running
}

// Parameters returns the dial parameters this client was built from.
func (c *Client) Parameters() redis.Parameters {
	return c.params
}

// WriteCommand enqueues cmd for writing without waiting for its reply.
func (c *Client) WriteCommand(cmd *redis.Command) error {
	if atomic.LoadInt32(&c.status) != running {
		return errors.New("client not connected")
	}

	args := append([][]byte{[]byte(cmd.ID())}, cmd.Arguments()...)
	req := &request{args: args, waiting: &wait.Wait{}}
	req.waiting.Add(1)
	c.working.Add(1)

	c.inflightMu.Lock()
	c.inflight[cmd] = req
	c.inflightMu.Unlock()

	c.correlate <- req
	c.pendingReqs <- req
	return nil
}

// ReadResponse blocks for the reply to the WriteCommand call made for cmd.
// Replies are matched to requests in FIFO wire order by finishRequest;
// ReadResponse only waits on the request WriteCommand already registered.
func (c *Client) ReadResponse(cmd *redis.Command) (redis.Reply, error) {
	c.inflightMu.Lock()
	req, ok := c.inflight[cmd]
	delete(c.inflight, cmd)
	c.inflightMu.Unlock()
	if !ok {
		return nil, errors.New("ReadResponse called without a matching WriteCommand")
	}
	defer c.working.Done()

	if timedOut := req.waiting.WaitWithTimeout(maxWait); timedOut {
		return nil, errors.New("server timed out")
	}
	if req.err != nil {
		return nil, req.err
	}
	return req.reply, nil
}

// ExecuteCommand writes cmd and blocks for its reply.
func (c *Client) ExecuteCommand(cmd *redis.Command) (redis.Reply, error) {
	if err := c.WriteCommand(cmd); err != nil {
		return nil, err
	}
	return c.ReadResponse(cmd)
}

func (c *Client) handleWrite() {
	for req := range c.pendingReqs {
		c.doRequest(req)
	}
}

func (c *Client) doRequest(req *request) {
	bytes := reply.MakeArrayReply(req.args).ToBytes()

	var err error
	for i := 0; i < 3; i++ {
		_, err = c.conn.Write(bytes)
		if err == nil || (!strings.Contains(err.Error(), "timeout") &&
			!strings.Contains(err.Error(), "deadline exceeded")) {
			break
		}
	}

	if err != nil {
		req.err = err
		req.waiting.Done()
	}
}

func (c *Client) handleRead() {
	ch := reply.ParseStream(c.conn)
	for payload := range ch {
		if payload.Err != nil {
			if atomic.LoadInt32(&c.status) == closed {
				return
			}
			c.reconnect()
			return
		}
		c.finishRequest(payload.Data)
	}
}

func (c *Client) finishRequest(r redis.Reply) {
	defer func() {
		if err := recover(); err != nil {
			debug.PrintStack()
			logger.Error(err)
		}
	}()

	req := <-c.correlate
	if req == nil {
		return
	}
	req.reply = r
	req.waiting.Done()
}

func (c *Client) reconnect() {
	logger.Info("reconnect with: " + c.addr)

	_ = c.conn.Close()

	var conn net.Conn
	for i := 0; i < 3; i++ {
		var err error
		conn, err = net.Dial("tcp", c.addr)
		if err == nil {
			break
		}
		logger.Error("reconnect error: " + err.Error())
		time.Sleep(time.Second)
	}
	if conn == nil {
		_ = c.Disconnect()
		return
	}
	c.conn = conn

	go c.handleRead()
}

func (c *Client) heartbeat() {
	for range c.ticker.C {
		_, _ = c.ExecuteCommand(redis.NewCommand("PING"))
	}
}
