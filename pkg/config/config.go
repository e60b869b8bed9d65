package config

import "flag"

type (
	// RelayConfig is the root config of the signaling relay process.
	RelayConfig struct {
		Relay   Relay
		Caption Caption
	}
	Relay struct {
		Debug      bool
		Monitoring Monitoring
		// allowed websocket origin, * allows any
		Origin string
		Server Server
	}
	// PeerConfig is the root config of the headless call peer.
	PeerConfig struct {
		Peer   Peer
		Webrtc Webrtc
	}
	Peer struct {
		Debug   bool
		Network struct {
			// address of the relay (host:port)
			Address string
			// websocket endpoint path on the relay
			Endpoint string
			Secure   bool
		}
		Room     string
		Password string
		// target language for translated captions
		Lang string
		// codecs of the outgoing tracks, empty disables the track
		Media struct {
			Audio string
			Video string
		}
	}
)

type Monitoring struct {
	Port             int
	URLPrefix        string
	MetricEnabled    bool `fig:"metric_enabled"`
	ProfilingEnabled bool `fig:"profiling_enabled"`
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

type Server struct {
	Address string
	Https   bool
	Tls     struct {
		Address   string
		Domain    string
		HttpsKey  string
		HttpsCert string
	}
}

func (s *Server) GetAddr() string {
	if s.Https {
		return s.Tls.Address
	}
	return s.Address
}

type Caption struct {
	Transcribe Transcribe
	Translate  Translate
}

// Transcribe points to an OpenAI-compatible speech-to-text endpoint.
type Transcribe struct {
	Endpoint string
	Key      string
	Model    string
	Language string
}

// Translate points to a Google-Translate-v2-compatible endpoint.
type Translate struct {
	Endpoint string
	Key      string
}

func (t Transcribe) IsEnabled() bool { return t.Key != "" }
func (t Translate) IsEnabled() bool  { return t.Key != "" }

// allows custom config path
var configPath string

func NewRelayConfig() (conf RelayConfig) {
	if err := LoadConfig(&conf, configPath); err != nil {
		panic(err)
	}
	return
}

func NewPeerConfig() (conf PeerConfig) {
	if err := LoadConfig(&conf, configPath); err != nil {
		panic(err)
	}
	return
}

func (c *RelayConfig) ParseFlags() {
	flag.StringVar(&c.Relay.Server.Address, "address", c.Relay.Server.Address, "server address (host:port)")
	flag.IntVar(&c.Relay.Monitoring.Port, "monitoring.port", c.Relay.Monitoring.Port, "monitoring server port")
	flag.StringVar(&configPath, "conf", configPath, "custom configuration file path")
	flag.Parse()
}

func (c *PeerConfig) ParseFlags() {
	flag.StringVar(&c.Peer.Network.Address, "relay", c.Peer.Network.Address, "relay address (host:port)")
	flag.StringVar(&c.Peer.Room, "room", c.Peer.Room, "room to create or join")
	flag.StringVar(&c.Peer.Password, "password", c.Peer.Password, "optional room password")
	flag.StringVar(&configPath, "conf", configPath, "custom configuration file path")
	flag.Parse()
}
