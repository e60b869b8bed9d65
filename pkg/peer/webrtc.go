package peer

import (
	"fmt"
	"strings"

	"github.com/babelcall/babelcall/pkg/config"
	"github.com/babelcall/babelcall/pkg/logger"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// ApiFactory builds pion peer connections with the shared media
// engine, interceptors, and ICE settings.
type ApiFactory struct {
	api  *webrtc.API
	conf webrtc.Configuration
	log  *logger.Logger
}

func NewApiFactory(conf config.Webrtc, log *logger.Logger) (*ApiFactory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	i := &interceptor.Registry{}
	if !conf.DisableDefaultInterceptors {
		if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
			return nil, err
		}
	}
	customLogger := logger.NewPionLogger(log, conf.LogLevel)
	s := webrtc.SettingEngine{LoggerFactory: customLogger}
	if conf.HasPortRange() {
		if err := s.SetEphemeralUDPPortRange(conf.IcePorts.Min, conf.IcePorts.Max); err != nil {
			return nil, err
		}
	}
	if conf.HasIceIpMap() {
		s.SetNAT1To1IPs([]string{conf.IceIpMap}, webrtc.ICECandidateTypeHost)
		log.Info().Msgf("The NAT mapping is active for %v", conf.IceIpMap)
	}

	c := webrtc.Configuration{ICEServers: []webrtc.ICEServer{}}
	for _, server := range conf.IceServers {
		c.ICEServers = append(c.ICEServers, webrtc.ICEServer{
			URLs:       []string{server.Urls},
			Username:   server.Username,
			Credential: server.Credential,
		})
	}

	return &ApiFactory{
		api:  webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(s)),
		conf: c,
		log:  log,
	}, nil
}

// NewTransport makes a peer connection with the observer callbacks
// plugged in. Local candidates are surfaced one by one, the final
// nil candidate of the gathering is dropped.
func (a *ApiFactory) NewTransport(observe Observer) (Transport, error) {
	conn, err := a.api.NewPeerConnection(a.conf)
	if err != nil {
		return nil, err
	}
	conn.OnICECandidate(func(ice *webrtc.ICECandidate) {
		if ice == nil {
			a.log.Debug().Msg("ICE gathering was complete probably")
			return
		}
		if observe.OnCandidate != nil {
			observe.OnCandidate(ice.ToJSON())
		}
	})
	conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		a.log.Debug().Str(".state", state.String()).Msg("Transport")
		if observe.OnState != nil {
			observe.OnState(state)
		}
	})
	conn.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		a.log.Debug().Msgf("Got remote [%s] track", track.Codec().MimeType)
		if observe.OnTrack != nil {
			observe.OnTrack(track)
		}
	})
	return &pionTransport{conn: conn, log: a.log}, nil
}

// pionTransport adapts a pion peer connection to the Transport surface.
type pionTransport struct {
	conn *webrtc.PeerConnection
	log  *logger.Logger
}

func (t *pionTransport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.conn.CreateOffer(nil)
}

func (t *pionTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.conn.CreateAnswer(nil)
}

func (t *pionTransport) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return t.conn.SetLocalDescription(sdp)
}

func (t *pionTransport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return t.conn.SetRemoteDescription(sdp)
}

func (t *pionTransport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.conn.AddICECandidate(candidate)
}

// AddTrack plugs the track into the connection. An existing sender of
// the same kind gets its track swapped in place, which doesn't trigger
// a renegotiation round.
func (t *pionTransport) AddTrack(track webrtc.TrackLocal) error {
	for _, sender := range t.conn.GetSenders() {
		if sender.Track() != nil && sender.Track().Kind() == track.Kind() {
			return sender.ReplaceTrack(track)
		}
	}
	sender, err := t.conn.AddTrack(track)
	if err != nil {
		return err
	}
	// Read incoming RTCP packets
	go func() {
		rtcpBuf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(rtcpBuf); err != nil {
				return
			}
		}
	}()
	t.log.Debug().Msgf("Added [%s] track", track.Kind())
	return nil
}

func (t *pionTransport) Close() error {
	if t.conn.ConnectionState() < webrtc.PeerConnectionStateDisconnected {
		// ignore this due to DTLS fatal: conn is closed
		return t.conn.Close()
	}
	return nil
}

// NewTrack makes a local sample track for the given codec.
func NewTrack(id string, label string, codec string) (*webrtc.TrackLocalStaticSample, error) {
	codec = strings.ToLower(codec)
	var mime string
	switch id {
	case "audio":
		switch codec {
		case "opus":
			mime = webrtc.MimeTypeOpus
		}
	case "video":
		switch codec {
		case "vpx", "vp8":
			mime = webrtc.MimeTypeVP8
		case "vp9":
			mime = webrtc.MimeTypeVP9
		case "h264":
			mime = webrtc.MimeTypeH264
		}
	}
	if mime == "" {
		return nil, fmt.Errorf("unsupported codec %s:%s", id, codec)
	}
	return webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, id, label)
}
