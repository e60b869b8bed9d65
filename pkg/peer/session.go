package peer

import (
	"errors"

	"github.com/babelcall/babelcall/pkg/logger"
	"github.com/pion/webrtc/v4"
)

// State is the negotiation state of one session.
type State uint8

const (
	// Empty is a session with no exchanged descriptions yet.
	Empty State = iota
	// Offering means the local description is out, an answer is awaited.
	Offering
	// Answering means a remote offer arrived and an answer is being made.
	Answering
	// Connected means both descriptions are exchanged and the transport
	// is establishing or has established connectivity.
	Connected
	// Closed is the terminal state.
	Closed
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Offering:
		return "offering"
	case Answering:
		return "answering"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	}
	return "?"
}

var errSessionClosed = errors.New("session closed")

// Session drives the negotiation with exactly one remote participant.
// All methods are called from a single coordinator loop, so the state
// needs no locking.
//
// Remote candidates may outrun the remote description. Those are kept
// in the pending queue and applied in the original arrival order the
// moment a remote description is accepted. The queue is drained at
// most once and discarded without draining on close.
type Session struct {
	remote    string
	state     State
	transport Transport

	hasRemote bool
	pending   []webrtc.ICECandidateInit
	drained   bool

	log *logger.Logger
}

func newSession(remote string, transport Transport, log *logger.Logger) *Session {
	return &Session{
		remote:    remote,
		transport: transport,
		log:       log.Extend(log.With().Str("peer", remote)),
	}
}

func (s *Session) State() State   { return s.state }
func (s *Session) Remote() string { return s.remote }

// Offer moves the session into the offering state and returns the local
// description to send out. A second trigger on an already started
// session is a no-op returning no description.
func (s *Session) Offer() (*webrtc.SessionDescription, error) {
	if s.state == Closed {
		return nil, errSessionClosed
	}
	if s.state != Empty {
		s.log.Debug().Msgf("skip offer, the session is already %s", s.state)
		return nil, nil
	}
	offer, err := s.transport.CreateOffer()
	if err != nil {
		return nil, err
	}
	if err = s.transport.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	s.state = Offering
	s.log.Debug().Msg("Created offer")
	return &offer, nil
}

// Answer accepts a remote offer and returns the local answer to send
// back, leaving the session connected.
func (s *Session) Answer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if s.state == Closed {
		return nil, errSessionClosed
	}
	if s.state == Offering {
		// Simultaneous offers have no resolution policy here, whichever
		// description lands last wins.
		s.log.Warn().Msg("glare: got a remote offer while offering")
	}
	s.state = Answering
	if err := s.acceptRemote(offer); err != nil {
		return nil, err
	}
	answer, err := s.transport.CreateAnswer()
	if err != nil {
		return nil, err
	}
	if err = s.transport.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	s.state = Connected
	s.log.Debug().Msg("Created answer")
	return &answer, nil
}

// AcceptAnswer applies the remote answer to an offering session.
func (s *Session) AcceptAnswer(answer webrtc.SessionDescription) error {
	if s.state == Closed {
		return errSessionClosed
	}
	if s.state != Offering {
		s.log.Debug().Msgf("unexpected answer in the %s state", s.state)
	}
	if err := s.acceptRemote(answer); err != nil {
		return err
	}
	s.state = Connected
	return nil
}

// AddCandidate applies a remote candidate right away when the remote
// description is known, otherwise the candidate is queued up.
func (s *Session) AddCandidate(candidate webrtc.ICECandidateInit) error {
	if s.state == Closed {
		return errSessionClosed
	}
	if !s.hasRemote {
		s.pending = append(s.pending, candidate)
		return nil
	}
	return s.transport.AddICECandidate(candidate)
}

// acceptRemote sets the remote description and drains the pending
// candidate queue exactly once, in the arrival order.
func (s *Session) acceptRemote(sdp webrtc.SessionDescription) error {
	if err := s.transport.SetRemoteDescription(sdp); err != nil {
		return err
	}
	s.hasRemote = true
	if s.drained {
		return nil
	}
	s.drained = true
	for _, candidate := range s.pending {
		if err := s.transport.AddICECandidate(candidate); err != nil {
			s.log.Error().Err(err).Msg("stale candidate was dropped")
		}
	}
	s.pending = nil
	return nil
}

// Attach plugs the local tracks into the transport. Tracks attached
// after the descriptions were exchanged swap the negotiated slots in
// place with no renegotiation round.
func (s *Session) Attach(tracks []webrtc.TrackLocal) error {
	if s.state == Closed {
		return errSessionClosed
	}
	for _, track := range tracks {
		if err := s.transport.AddTrack(track); err != nil {
			return err
		}
	}
	return nil
}

// Close tears the session down, the pending queue is discarded
// without being drained.
func (s *Session) Close() {
	if s.state == Closed {
		return
	}
	s.state = Closed
	s.pending = nil
	if err := s.transport.Close(); err != nil {
		s.log.Debug().Err(err).Msg("transport close fail")
	}
	s.log.Debug().Msg("Session closed")
}
