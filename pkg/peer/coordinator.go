package peer

import (
	"sync"

	"github.com/babelcall/babelcall/pkg/api"
	"github.com/babelcall/babelcall/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
)

// signaler is the write side of the signaling channel.
type signaler interface {
	Notify(t api.PT, payload any)
}

type eventKind uint8

const (
	evConnect eventKind = iota
	evRemoteOffer
	evRemoteAnswer
	evRemoteCandidate
	evLocalCandidate
	evStateChange
	evAttachMedia
	evTeardown
)

type event struct {
	kind      eventKind
	remote    string
	sdp       webrtc.SessionDescription
	candidate webrtc.ICECandidateInit
	state     webrtc.PeerConnectionState
	tracks    []webrtc.TrackLocal
}

// Coordinator drives the sessions of one call participant to
// convergence with their remote peers. Every state transition happens
// on a single loop in response to a queued event, so the sessions see
// no concurrent mutation at all.
type Coordinator struct {
	wire    signaler
	factory TransportFactory

	sessions map[string]*Session
	media    []webrtc.TrackLocal

	events chan event
	quit   chan struct{}
	done   chan struct{}
	stop   sync.Once

	log *logger.Logger
}

func NewCoordinator(wire signaler, factory TransportFactory, log *logger.Logger) *Coordinator {
	return &Coordinator{
		wire:     wire,
		factory:  factory,
		sessions: make(map[string]*Session, 1),
		events:   make(chan event, 64),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      log,
	}
}

func (c *Coordinator) Start() { go c.run() }

// Stop abandons any in-flight negotiation and closes every session.
func (c *Coordinator) Stop() {
	c.stop.Do(func() { close(c.quit) })
	<-c.done
}

// Connect triggers the empty → offering transition for the session
// with the remote participant. Idempotent.
func (c *Coordinator) Connect(remote string) { c.enqueue(event{kind: evConnect, remote: remote}) }

func (c *Coordinator) RemoteOffer(from string, sdp webrtc.SessionDescription) {
	c.enqueue(event{kind: evRemoteOffer, remote: from, sdp: sdp})
}

func (c *Coordinator) RemoteAnswer(from string, sdp webrtc.SessionDescription) {
	c.enqueue(event{kind: evRemoteAnswer, remote: from, sdp: sdp})
}

func (c *Coordinator) RemoteCandidate(from string, candidate webrtc.ICECandidateInit) {
	c.enqueue(event{kind: evRemoteCandidate, remote: from, candidate: candidate})
}

// AttachMedia sets the local track set of every present and future
// session. May be called before or after sessions connect.
func (c *Coordinator) AttachMedia(tracks ...webrtc.TrackLocal) {
	c.enqueue(event{kind: evAttachMedia, tracks: tracks})
}

// Teardown closes the session with the remote participant.
func (c *Coordinator) Teardown(remote string) { c.enqueue(event{kind: evTeardown, remote: remote}) }

func (c *Coordinator) enqueue(e event) {
	select {
	case c.events <- e:
	case <-c.quit:
	}
}

func (c *Coordinator) run() {
	for {
		select {
		case e := <-c.events:
			c.handle(e)
		case <-c.quit:
			for remote, s := range c.sessions {
				s.Close()
				delete(c.sessions, remote)
			}
			close(c.done)
			return
		}
	}
}

func (c *Coordinator) handle(e event) {
	switch e.kind {
	case evConnect:
		s := c.ensure(e.remote)
		if s == nil {
			return
		}
		offer, err := s.Offer()
		if err != nil {
			c.fault(s, err)
			return
		}
		if offer != nil {
			c.send(api.Offer, e.remote, offer)
		}
	case evRemoteOffer:
		s := c.ensure(e.remote)
		if s == nil {
			return
		}
		answer, err := s.Answer(e.sdp)
		if err != nil {
			c.fault(s, err)
			return
		}
		if answer != nil {
			c.send(api.Answer, e.remote, answer)
		}
	case evRemoteAnswer:
		s, ok := c.sessions[e.remote]
		if !ok {
			c.log.Debug().Msgf("answer from the unknown peer %v", e.remote)
			return
		}
		if err := s.AcceptAnswer(e.sdp); err != nil {
			c.fault(s, err)
		}
	case evRemoteCandidate:
		// a candidate never makes a session: descriptions precede their
		// candidates on the ordered channel, so an unknown sender here is
		// a peer that has already been torn down
		s, ok := c.sessions[e.remote]
		if !ok {
			c.log.Debug().Msgf("dropped a candidate from the unknown peer %v", e.remote)
			return
		}
		if err := s.AddCandidate(e.candidate); err != nil {
			c.fault(s, err)
		}
	case evLocalCandidate:
		// own candidates fly out the moment they are discovered,
		// whatever the session state is
		c.send(api.IceCandidate, e.remote, e.candidate)
	case evStateChange:
		s, ok := c.sessions[e.remote]
		if !ok {
			return
		}
		switch e.state {
		case webrtc.PeerConnectionStateConnected:
			s.log.Info().Msg("Connected")
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateClosed:
			s.Close()
			delete(c.sessions, e.remote)
		}
	case evAttachMedia:
		c.media = e.tracks
		for _, s := range c.sessions {
			if err := s.Attach(c.media); err != nil {
				s.log.Error().Err(err).Msg("track attach fail")
			}
		}
	case evTeardown:
		if s, ok := c.sessions[e.remote]; ok {
			s.Close()
			delete(c.sessions, e.remote)
		}
	}
}

// ensure returns the session of the remote participant, making one
// with a fresh transport when there is none yet.
func (c *Coordinator) ensure(remote string) *Session {
	if s, ok := c.sessions[remote]; ok {
		return s
	}
	transport, err := c.factory.NewTransport(Observer{
		OnCandidate: func(candidate webrtc.ICECandidateInit) {
			c.enqueue(event{kind: evLocalCandidate, remote: remote, candidate: candidate})
		},
		OnState: func(state webrtc.PeerConnectionState) {
			c.enqueue(event{kind: evStateChange, remote: remote, state: state})
		},
	})
	if err != nil {
		c.log.Error().Err(err).Msg("couldn't init the transport")
		return nil
	}
	s := newSession(remote, transport, c.log)
	if len(c.media) > 0 {
		if err = s.Attach(c.media); err != nil {
			s.log.Error().Err(err).Msg("track attach fail")
		}
	}
	c.sessions[remote] = s
	return s
}

// fault closes the session over a malformed or rejected description
// or candidate. Negotiation is never retried on its own, a new
// connect trigger starts it from scratch.
func (c *Coordinator) fault(s *Session, err error) {
	s.log.Error().Err(err).Msg("negotiation fault")
	s.Close()
	delete(c.sessions, s.remote)
}

func (c *Coordinator) send(t api.PT, remote string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error().Err(err).Msgf("%s encode fail", t)
		return
	}
	c.wire.Notify(t, api.Signal{Target: remote, Data: data})
}
