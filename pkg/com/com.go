package com

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/babelcall/babelcall/pkg/api"
	"github.com/babelcall/babelcall/pkg/logger"
	"github.com/babelcall/babelcall/pkg/network/websocket"
	"github.com/goccy/go-json"
)

type (
	Connector struct {
		wu *websocket.Upgrader
	}
	// Client multiplexes sync calls and async sends over one websocket.
	Client struct {
		conn     *websocket.WS
		queue    map[Uid]*call
		onPacket func(packet In)
		mu       sync.Mutex
	}
	call struct {
		done     chan struct{}
		err      error
		response In
	}
	Option = func(c *Connector)
)

var (
	errConnClosed = errors.New("connection closed")
	errTimeout    = errors.New("timeout")
)

func WithOrigin(url string) Option { return func(c *Connector) { c.wu = websocket.NewUpgrader(url) } }

const callTimeout = 5 * time.Second

func NewConnector(opts ...Option) *Connector {
	c := &Connector{}
	for _, opt := range opts {
		opt(c)
	}
	if c.wu == nil {
		c.wu = &websocket.DefaultUpgrader
	}
	return c
}

func (co *Connector) NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*Client, error) {
	ws, err := co.wu.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return connect(websocket.NewServerWithConn(ws, log))
}

func (co *Connector) NewClient(address url.URL, log *logger.Logger) (*Client, error) {
	return connect(websocket.NewClient(address, log))
}

func connect(conn *websocket.WS, err error) (*Client, error) {
	if err != nil {
		return nil, err
	}
	client := &Client{conn: conn, queue: make(map[Uid]*call, 1)}
	client.conn.OnMessage = client.handleMessage
	return client, nil
}

func (c *Client) IsServer() bool { return c.conn.IsServer() }

func (c *Client) OnPacket(fn func(packet In)) { c.mu.Lock(); c.onPacket = fn; c.mu.Unlock() }

// Listen starts the underlying socket pumps, the returned
// channel closes when the connection is done.
func (c *Client) Listen() chan struct{} { return c.conn.Listen() }

func (c *Client) Close() {
	c.conn.Close()
	c.drain(errConnClosed)
}

// Call does a blocking request and waits for the response payload
// correlated by the packet id.
func (c *Client) Call(type_ api.PT, payload any) ([]byte, error) {
	id := NewUid()
	r, err := json.Marshal(Out{Id: id.String(), T: type_, Payload: payload})
	if err != nil {
		return nil, err
	}

	task := &call{done: make(chan struct{})}
	c.mu.Lock()
	c.queue[id] = task
	c.mu.Unlock()
	c.conn.Write(r)
	select {
	case <-task.done:
	case <-time.After(callTimeout):
		c.pop(id)
		task.err = errTimeout
	}
	return task.response.Payload, task.err
}

// Notify sends a message and doesn't wait for any response.
func (c *Client) Notify(type_ api.PT, payload any) error {
	return c.SendPacket(Out{T: type_, Payload: payload})
}

// Route sends a response to a request retaining the request id.
func (c *Client) Route(p In, payload any) error {
	return c.SendPacket(Out{Id: p.Id.String(), T: p.T, Payload: payload})
}

func (c *Client) SendPacket(packet Out) error {
	r, err := json.Marshal(packet)
	if err != nil {
		return err
	}
	c.conn.Write(r)
	return nil
}

func (c *Client) handleMessage(message []byte, err error) {
	if err != nil {
		return
	}

	var res In
	if err = json.Unmarshal(message, &res); err != nil {
		return
	}

	// empty id implies that we won't track (wait) the response
	if !res.Id.IsEmpty() {
		if task := c.pop(res.Id); task != nil {
			task.response = res
			close(task.done)
			return
		}
	}
	c.mu.Lock()
	fn := c.onPacket
	c.mu.Unlock()
	if fn != nil {
		fn(res)
	}
}

// pop extracts and removes a task from the queue by its id.
func (c *Client) pop(id Uid) *call {
	c.mu.Lock()
	task := c.queue[id]
	delete(c.queue, id)
	c.mu.Unlock()
	return task
}

// drain cancels all what's left in the task queue.
func (c *Client) drain(err error) {
	c.mu.Lock()
	for id, task := range c.queue {
		if task.err == nil {
			task.err = err
		}
		delete(c.queue, id)
		close(task.done)
	}
	c.mu.Unlock()
}
