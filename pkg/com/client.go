package com

import (
	"github.com/babelcall/babelcall/pkg/api"
	"github.com/babelcall/babelcall/pkg/logger"
)

// SocketClient is one identified end of a signaling channel
// with per-direction packet logging.
type SocketClient struct {
	id   Uid
	tag  string
	wire *Client

	Log *logger.Logger
}

func New(conn *Client, tag string, id Uid, log *logger.Logger) SocketClient {
	l := log.Extend(log.With().Str("cid", id.Short()))
	return SocketClient{id: id, wire: conn, tag: tag, Log: l}
}

func (c SocketClient) OnPacket(fn func(p In) error) {
	c.wire.OnPacket(func(p In) {
		c.Log.Debug().Str(logger.DirectionField, "←").Msgf("%s", p.T)
		if err := fn(p); err != nil {
			c.Log.Error().Err(err).Msgf("%s failed", p.T)
		}
	})
}

// Call makes a blocking request over the channel.
func (c SocketClient) Call(t api.PT, payload any) ([]byte, error) {
	c.Log.Debug().Str(logger.DirectionField, "→").Msgf("ᵇ%s", t)
	return c.wire.Call(t, payload)
}

// Notify just sends a message and goes further.
func (c SocketClient) Notify(t api.PT, payload any) {
	c.Log.Debug().Str(logger.DirectionField, "→").Msgf("%s", t)
	_ = c.wire.Notify(t, payload)
}

// Route responds to a request retaining its packet id.
func (c SocketClient) Route(in In, payload any) {
	c.Log.Debug().Str(logger.DirectionField, "→").Msgf("%s", in.T)
	_ = c.wire.Route(in, payload)
}

func (c SocketClient) Listen() chan struct{} { return c.wire.Listen() }

func (c SocketClient) Disconnect() {
	c.wire.Close()
	c.Log.Debug().Str(logger.DirectionField, "x").Msg("Close")
}

func (c SocketClient) Id() Uid        { return c.id }
func (c SocketClient) String() string { return c.id.String() }
