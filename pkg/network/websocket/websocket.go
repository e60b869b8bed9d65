package websocket

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/babelcall/babelcall/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 512 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
)

type WSMessageHandler func(message []byte, err error)

type WS struct {
	sock *websocket.Conn
	send chan []byte

	// OnMessage is fired on each incoming message.
	// Should be set before Listen.
	OnMessage WSMessageHandler

	pingPong bool
	server   bool

	once sync.Once
	stop sync.Once
	halt chan struct{}
	Done chan struct{}

	log *logger.Logger
}

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{
	Upgrader: websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteBufferPool: &sync.Pool{},
		CheckOrigin:     func(r *http.Request) bool { return true },
	},
}

// NewUpgrader makes an upgrader with the allowed origin check.
// The * value allows any origin.
func NewUpgrader(origin string) *Upgrader {
	u := Upgrader{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			WriteBufferPool: &sync.Pool{},
		},
	}
	if origin == "*" || origin == "" {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	} else {
		u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	}
	return &u
}

// NewServerWithConn wraps an already upgraded connection.
// The server side pings its clients.
func NewServerWithConn(conn *websocket.Conn, log *logger.Logger) (*WS, error) {
	return newSocket(conn, true, log), nil
}

func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, isServer bool, log *logger.Logger) *WS {
	return &WS{
		sock:     conn,
		send:     make(chan []byte, 64),
		pingPong: isServer,
		server:   isServer,
		halt:     make(chan struct{}),
		Done:     make(chan struct{}),
		log:      log,
	}
}

func (ws *WS) IsServer() bool { return ws.server }

// Listen starts the read and write pumps.
// The returned channel closes when both pumps are dead.
func (ws *WS) Listen() chan struct{} {
	ws.once.Do(func() {
		var pumps sync.WaitGroup
		pumps.Add(2)
		go ws.writer(&pumps)
		go ws.reader(&pumps)
		go func() {
			pumps.Wait()
			_ = ws.sock.Close()
			close(ws.Done)
		}()
	})
	return ws.Done
}

// Write queues a message for the writer pump.
// Messages are dropped when the connection is closing.
func (ws *WS) Write(data []byte) {
	select {
	case <-ws.halt:
	case ws.send <- data:
	}
}

func (ws *WS) Close() {
	_ = ws.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.shut()
}

func (ws *WS) shut() {
	ws.stop.Do(func() {
		close(ws.halt)
		// unblocks the pending read
		_ = ws.sock.SetReadDeadline(time.Now())
	})
}

// write pushes one frame out with the stale-peer deadline applied.
func (ws *WS) write(t int, mess []byte) error {
	_ = ws.sock.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.sock.WriteMessage(t, mess)
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Serializes all websocket reads.
func (ws *WS) reader(wg *sync.WaitGroup) {
	defer func() {
		ws.shut()
		wg.Done()
	}()
	ws.sock.SetReadLimit(maxMessageSize)
	if ws.pingPong {
		_ = ws.sock.SetReadDeadline(time.Now().Add(pongTime))
		ws.sock.SetPongHandler(func(string) error { return ws.sock.SetReadDeadline(time.Now().Add(pongTime)) })
	}
	for {
		_, message, err := ws.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Debug().Err(err).Msg("ws read fail")
			}
			return
		}
		if ws.OnMessage != nil {
			ws.OnMessage(message, nil)
		}
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Serializes all websocket writes.
func (ws *WS) writer(wg *sync.WaitGroup) {
	var ticker *time.Ticker
	if ws.pingPong {
		ticker = time.NewTicker(pingTime)
	} else {
		ticker = time.NewTicker(time.Hour)
		ticker.Stop()
	}
	defer func() {
		ticker.Stop()
		ws.shut()
		wg.Done()
	}()
	for {
		select {
		case <-ws.halt:
			return
		case message := <-ws.send:
			if err := ws.write(websocket.TextMessage, message); err != nil {
				ws.log.Debug().Err(err).Msg("ws write fail")
				return
			}
		case <-ticker.C:
			if err := ws.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
