package peer

import "github.com/pion/webrtc/v4"

type (
	// Transport is the real-time transport of one session. It mirrors
	// the browser negotiation surface so the state machine stays
	// independent of the concrete engine.
	Transport interface {
		CreateOffer() (webrtc.SessionDescription, error)
		CreateAnswer() (webrtc.SessionDescription, error)
		SetLocalDescription(webrtc.SessionDescription) error
		SetRemoteDescription(webrtc.SessionDescription) error
		AddICECandidate(webrtc.ICECandidateInit) error
		// AddTrack plugs a local track in, replacing an already
		// negotiated track of the same kind in place.
		AddTrack(webrtc.TrackLocal) error
		Close() error
	}

	// Observer carries the async callbacks of one transport.
	Observer struct {
		// OnCandidate fires on every discovered local candidate.
		OnCandidate func(webrtc.ICECandidateInit)
		// OnState fires on the connectivity state changes.
		OnState func(webrtc.PeerConnectionState)
		// OnTrack fires when a remote track arrives.
		OnTrack func(track *webrtc.TrackRemote)
	}

	TransportFactory interface {
		NewTransport(observe Observer) (Transport, error)
	}
)
