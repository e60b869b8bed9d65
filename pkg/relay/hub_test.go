package relay

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/babelcall/babelcall/pkg/api"
	"github.com/babelcall/babelcall/pkg/com"
	"github.com/babelcall/babelcall/pkg/config"
	"github.com/babelcall/babelcall/pkg/logger"
	"github.com/goccy/go-json"
)

type testClient struct {
	com.SocketClient
	packets chan com.In
}

func startRelay(t *testing.T) *httptest.Server {
	return startRelayWith(t, config.RelayConfig{})
}

func startRelayWith(t *testing.T, conf config.RelayConfig) *httptest.Server {
	conf.Relay.Origin = "*"
	hub := NewHub(conf, logger.Default())
	srv := httptest.NewServer(http.HandlerFunc(hub.handleUserConnection))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *testClient {
	addr, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	conn, err := com.NewConnector().NewClient(url.URL{Scheme: "ws", Host: addr.Host}, logger.Default())
	if err != nil {
		t.Fatal(err)
	}
	c := &testClient{
		SocketClient: com.New(conn, "t", com.NewUid(), logger.Default()),
		packets:      make(chan com.In, 16),
	}
	c.OnPacket(func(p com.In) error {
		c.packets <- p
		return nil
	})
	c.Listen()
	t.Cleanup(c.Disconnect)
	return c
}

func (c *testClient) expect(t *testing.T, pt api.PT) com.In {
	t.Helper()
	select {
	case p := <-c.packets:
		if p.T != pt {
			t.Fatalf("got %v (want %v)", p.T, pt)
		}
		return p
	case <-time.After(3 * time.Second):
		t.Fatalf("no %v arrived", pt)
	}
	return com.In{}
}

func (c *testClient) room(t *testing.T, pt api.PT, rq api.RoomRequest) *api.RoomResponse {
	t.Helper()
	rez, err := api.UnwrapChecked[api.RoomResponse](c.Call(pt, rq))
	if err != nil || rez == nil {
		t.Fatalf("%v call: %v %v", pt, rez, err)
	}
	return rez
}

func TestHubRoomHandshake(t *testing.T) {
	srv := startRelay(t)
	a, b := dial(t, srv), dial(t, srv)
	rq := api.RoomRequest{Rid: "e2e"}

	created := a.room(t, api.CreateRoom, rq)
	if !created.Success || created.Id == "" {
		t.Fatalf("create: %+v", created)
	}
	if rez := b.room(t, api.CreateRoom, rq); rez.Success || rez.Message != ErrRoomExists.Error() {
		t.Fatalf("duplicate create: %+v", rez)
	}
	joinedAs := b.room(t, api.JoinRoom, rq)
	if !joinedAs.Success || joinedAs.Id == "" {
		t.Fatalf("join: %+v", joinedAs)
	}

	// the first occupant learns about the second one under the same id
	// the relay handed the joiner back
	joined := api.Unwrap[api.User](a.expect(t, api.UserConnected).Payload)
	if joined == nil || joined.Id != joinedAs.Id {
		t.Fatalf("user-connected: %+v (joiner is %v)", joined, joinedAs.Id)
	}
}

func TestHubMalformedRoomRequest(t *testing.T) {
	srv := startRelay(t)
	a := dial(t, srv)

	if rez := a.room(t, api.CreateRoom, api.RoomRequest{}); rez.Success || rez.Message == "" {
		t.Fatalf("empty room id got: %+v", rez)
	}
}

func TestHubSignalRelay(t *testing.T) {
	srv := startRelay(t)
	a, b := dial(t, srv), dial(t, srv)
	rq := api.RoomRequest{Rid: "signals", Password: "pass"}

	if rez := a.room(t, api.CreateRoom, rq); !rez.Success {
		t.Fatalf("create: %+v", rez)
	}
	if rez := b.room(t, api.JoinRoom, rq); !rez.Success {
		t.Fatalf("join: %+v", rez)
	}
	peer := api.Unwrap[api.User](a.expect(t, api.UserConnected).Payload)

	// the payload must come out the other end untouched
	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	a.Notify(api.Offer, api.Signal{Target: peer.Id, Data: sdp})

	sig := api.Unwrap[api.Signal](b.expect(t, api.Offer).Payload)
	if sig == nil || sig.From == "" {
		t.Fatalf("offer signal: %+v", sig)
	}
	if string(sig.Data) != string(sdp) {
		t.Errorf("offer payload was mangled: %s", sig.Data)
	}

	// and the same backwards, routed by the sender id
	b.Notify(api.Answer, api.Signal{Target: sig.From, Data: json.RawMessage(`{"type":"answer"}`)})
	if back := api.Unwrap[api.Signal](a.expect(t, api.Answer).Payload); back == nil || back.From != peer.Id {
		t.Fatalf("answer signal: %+v", back)
	}

	// a candidate for a peer that is gone disappears silently
	a.Notify(api.IceCandidate, api.Signal{Target: com.NewUid().String(), Data: sdp})
	a.Notify(api.IceCandidate, api.Signal{Target: peer.Id, Data: sdp})
	b.expect(t, api.IceCandidate)
}

func TestHubCaptionFanOut(t *testing.T) {
	stt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"text":"hello"}`))
	}))
	t.Cleanup(stt.Close)
	mt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"hola"}]}}`))
	}))
	t.Cleanup(mt.Close)

	conf := config.RelayConfig{}
	conf.Caption.Transcribe = config.Transcribe{Endpoint: stt.URL, Key: "k", Model: "m"}
	conf.Caption.Translate = config.Translate{Endpoint: mt.URL, Key: "k"}
	srv := startRelayWith(t, conf)

	a, b := dial(t, srv), dial(t, srv)
	rq := api.RoomRequest{Rid: "captions"}
	created := a.room(t, api.CreateRoom, rq)
	if !created.Success {
		t.Fatalf("create: %+v", created)
	}
	if rez := b.room(t, api.JoinRoom, rq); !rez.Success {
		t.Fatalf("join: %+v", rez)
	}
	a.expect(t, api.UserConnected)

	// a transcript line reaches the whole room, the speaker included
	a.Notify(api.AudioChunk, api.AudioSegment{Rid: "captions", Audio: []byte("blob"), Timestamp: 7})
	for _, c := range []*testClient{a, b} {
		line := api.Unwrap[api.TranscriptResult](c.expect(t, api.Transcript).Payload)
		if line == nil || line.Text != "hello" || line.UserId != created.Id {
			t.Fatalf("transcript: %+v", line)
		}
	}

	b.Notify(api.Translate, api.TranslateRequest{Rid: "captions", Text: "hello", TargetLang: "es"})
	for _, c := range []*testClient{a, b} {
		line := api.Unwrap[api.TranslationResult](c.expect(t, api.Translation).Payload)
		if line == nil || line.TranslatedText != "hola" || line.TargetLang != "es" {
			t.Fatalf("translation: %+v", line)
		}
	}

	// a chunk from a sender outside the named room goes nowhere
	c := dial(t, srv)
	c.Notify(api.AudioChunk, api.AudioSegment{Rid: "captions", Audio: []byte("blob")})
	select {
	case p := <-a.packets:
		t.Fatalf("outsider chunk was fanned out as %v", p.T)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHubDisconnectNotifies(t *testing.T) {
	srv := startRelay(t)
	a, b := dial(t, srv), dial(t, srv)
	rq := api.RoomRequest{Rid: "bye"}

	if rez := a.room(t, api.CreateRoom, rq); !rez.Success {
		t.Fatalf("create: %+v", rez)
	}
	if rez := b.room(t, api.JoinRoom, rq); !rez.Success {
		t.Fatalf("join: %+v", rez)
	}
	a.expect(t, api.UserConnected)

	b.Disconnect()
	gone := api.Unwrap[api.User](a.expect(t, api.UserDisconnected).Payload)
	if gone == nil || gone.Id == "" {
		t.Fatalf("user-disconnected: %+v", gone)
	}

	// the room seat is free again
	c := dial(t, srv)
	if rez := c.room(t, api.JoinRoom, rq); !rez.Success {
		t.Fatalf("rejoin: %+v", rez)
	}
	a.expect(t, api.UserConnected)
}
