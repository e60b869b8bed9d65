// Package peer implements a headless call participant: it signs into
// a room over the relay's websocket and negotiates a direct transport
// with whoever else is in there.
package peer

import (
	"fmt"
	"net/url"

	"github.com/babelcall/babelcall/pkg/api"
	"github.com/babelcall/babelcall/pkg/com"
	"github.com/babelcall/babelcall/pkg/config"
	"github.com/babelcall/babelcall/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
)

type Peer struct {
	conf config.PeerConfig
	log  *logger.Logger

	relay com.SocketClient
	cord  *Coordinator

	// self is the relay-assigned connection id, learned from
	// the room response; transcripts are stamped with it.
	self string

	done chan struct{}
}

func New(conf config.PeerConfig, log *logger.Logger) (*Peer, error) {
	scheme := "ws"
	if conf.Peer.Network.Secure {
		scheme = "wss"
	}
	endpoint := conf.Peer.Network.Endpoint
	if endpoint == "" {
		endpoint = "/ws"
	}
	address := url.URL{Scheme: scheme, Host: conf.Peer.Network.Address, Path: endpoint}
	conn, err := com.NewConnector().NewClient(address, log)
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to the relay on %v, %w", address.String(), err)
	}
	relay := com.New(conn, "p", com.NewUid(), log)

	factory, err := NewApiFactory(conf.Webrtc, log)
	if err != nil {
		return nil, err
	}

	p := &Peer{
		conf:  conf,
		log:   log,
		relay: relay,
		cord:  NewCoordinator(relay, factory, log),
	}
	p.routes()
	return p, nil
}

// Start runs the signaling loop and enters the configured room,
// creating it when it doesn't exist yet.
func (p *Peer) Start() error {
	p.done = p.relay.Listen()
	p.cord.Start()
	if err := p.enterRoom(); err != nil {
		return err
	}
	if err := p.attachMedia(); err != nil {
		return err
	}
	return nil
}

// Done closes when the relay connection is gone.
func (p *Peer) Done() chan struct{} { return p.done }

func (p *Peer) Stop() {
	p.cord.Stop()
	p.relay.Disconnect()
}

func (p *Peer) routes() {
	p.relay.OnPacket(func(in com.In) error {
		switch in.T {
		case api.UserConnected:
			dat := api.Unwrap[api.User](in.Payload)
			if dat == nil {
				return api.ErrMalformed
			}
			p.log.Info().Msgf("User %v has joined the room", dat.Id)
			p.cord.Connect(dat.Id)
		case api.UserDisconnected:
			dat := api.Unwrap[api.User](in.Payload)
			if dat == nil {
				return api.ErrMalformed
			}
			p.log.Info().Msgf("User %v has left the room", dat.Id)
			p.cord.Teardown(dat.Id)
		case api.Offer:
			sig, sdp, err := unpackSignal[webrtc.SessionDescription](in.Payload)
			if err != nil {
				return err
			}
			p.cord.RemoteOffer(sig.From, *sdp)
		case api.Answer:
			sig, sdp, err := unpackSignal[webrtc.SessionDescription](in.Payload)
			if err != nil {
				return err
			}
			p.cord.RemoteAnswer(sig.From, *sdp)
		case api.IceCandidate:
			sig, candidate, err := unpackSignal[webrtc.ICECandidateInit](in.Payload)
			if err != nil {
				return err
			}
			p.cord.RemoteCandidate(sig.From, *candidate)
		case api.Transcript:
			dat := api.Unwrap[api.TranscriptResult](in.Payload)
			if dat == nil {
				return api.ErrMalformed
			}
			p.handleTranscript(dat)
		case api.Translation:
			dat := api.Unwrap[api.TranslationResult](in.Payload)
			if dat == nil {
				return api.ErrMalformed
			}
			p.log.Info().Msgf("[%s] %s (%s)", dat.TargetLang, dat.TranslatedText, dat.OriginalText)
		default:
			p.log.Warn().Msgf("unhandled packet %v", in.T)
		}
		return nil
	})
}

// handleTranscript prints a caption and, when a target language is
// set, asks the relay to translate what the other side said.
func (p *Peer) handleTranscript(dat *api.TranscriptResult) {
	p.log.Info().Msgf("%v: %s", dat.UserId, dat.Text)
	if !p.wantsTranslation(dat) {
		return
	}
	p.relay.Notify(api.Translate, api.TranslateRequest{
		Rid:        p.conf.Peer.Room,
		Text:       dat.Text,
		TargetLang: p.conf.Peer.Lang,
		Timestamp:  dat.Timestamp,
	})
}

// wantsTranslation filters out our own lines, which come back stamped
// with the relay-assigned id, so only the other side's speech is
// translated.
func (p *Peer) wantsTranslation(dat *api.TranscriptResult) bool {
	return p.conf.Peer.Lang != "" && dat.Text != "" && dat.UserId != p.self
}

func (p *Peer) enterRoom() error {
	req := api.RoomRequest{Rid: p.conf.Peer.Room, Password: p.conf.Peer.Password}
	rez, err := api.UnwrapChecked[api.RoomResponse](p.relay.Call(api.CreateRoom, req))
	if err != nil {
		return err
	}
	if rez == nil {
		return api.ErrMalformed
	}
	if rez.Success {
		p.self = rez.Id
		p.log.Info().Msgf("Created the room %v", req.Rid)
		return nil
	}
	// the room is already there most likely, so try to get in
	rez, err = api.UnwrapChecked[api.RoomResponse](p.relay.Call(api.JoinRoom, req))
	if err != nil {
		return err
	}
	if rez == nil {
		return api.ErrMalformed
	}
	if !rez.Success {
		return fmt.Errorf("couldn't enter the room %v, %v", req.Rid, rez.Message)
	}
	p.self = rez.Id
	p.log.Info().Msgf("Joined the room %v", req.Rid)
	return nil
}

func (p *Peer) attachMedia() error {
	var tracks []webrtc.TrackLocal
	if codec := p.conf.Peer.Media.Audio; codec != "" {
		track, err := NewTrack("audio", "audio", codec)
		if err != nil {
			return err
		}
		tracks = append(tracks, track)
	}
	if codec := p.conf.Peer.Media.Video; codec != "" {
		track, err := NewTrack("video", "video", codec)
		if err != nil {
			return err
		}
		tracks = append(tracks, track)
	}
	if len(tracks) > 0 {
		p.cord.AttachMedia(tracks...)
	}
	return nil
}

// unpackSignal peels the envelope and decodes its inner payload.
func unpackSignal[T any](payload json.RawMessage) (*api.Signal, *T, error) {
	sig := api.Unwrap[api.Signal](payload)
	if sig == nil || sig.From == "" || len(sig.Data) == 0 {
		return nil, nil, api.ErrMalformed
	}
	var data T
	if err := json.Unmarshal(sig.Data, &data); err != nil {
		return nil, nil, err
	}
	return sig, &data, nil
}
