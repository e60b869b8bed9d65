// Package relay implements the signaling relay process: room
// registry, packet forwarding, and caption fan-out for two-party
// calls. The relay never interprets session descriptions or ICE
// candidates, those belong to the peers' transport.
package relay

import (
	"context"
	"net/http"

	"github.com/babelcall/babelcall/pkg/config"
	"github.com/babelcall/babelcall/pkg/logger"
	"github.com/babelcall/babelcall/pkg/monitoring"
	"github.com/babelcall/babelcall/pkg/network/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Relay struct {
	conf config.RelayConfig
	log  *logger.Logger

	hub     *Hub
	server  *httpx.Server
	monitor *monitoring.Monitoring
}

func New(conf config.RelayConfig, log *logger.Logger) (*Relay, error) {
	hub := NewHub(conf, log)
	server, err := httpx.NewServer(
		conf.Relay.Server.GetAddr(),
		func(*httpx.Server) http.Handler {
			r := chi.NewRouter()
			r.Use(middleware.Recoverer)
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("babelcall relay"))
			})
			r.Get("/ws", hub.handleUserConnection)
			return r
		},
		httpx.WithServerConfig(conf.Relay.Server),
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	rly := &Relay{conf: conf, log: log, hub: hub, server: server}
	if conf.Relay.Monitoring.IsEnabled() {
		rly.monitor = monitoring.New(conf.Relay.Monitoring, "rl", log)
	}
	return rly, nil
}

// Addr is the bound address of the signaling server.
func (r *Relay) Addr() string { return r.server.Addr }

func (r *Relay) Start() {
	r.server.Run()
	if r.monitor != nil {
		r.monitor.Run()
	}
}

func (r *Relay) Shutdown(ctx context.Context) error {
	err := r.server.Stop(ctx)
	if r.monitor != nil {
		if err2 := r.monitor.Shutdown(ctx); err == nil {
			err = err2
		}
	}
	return err
}
