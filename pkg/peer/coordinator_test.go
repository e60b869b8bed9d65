package peer

import (
	"testing"

	"github.com/babelcall/babelcall/pkg/api"
	"github.com/babelcall/babelcall/pkg/logger"
	"github.com/pion/webrtc/v4"
)

type sent struct {
	t       api.PT
	payload any
}

type fakeSignaler struct{ out []sent }

func (f *fakeSignaler) Notify(t api.PT, payload any) { f.out = append(f.out, sent{t, payload}) }

type fakeFactory struct {
	transports []*fakeTransport
	observers  []Observer
}

func (f *fakeFactory) NewTransport(observe Observer) (Transport, error) {
	tr := &fakeTransport{}
	f.transports = append(f.transports, tr)
	f.observers = append(f.observers, observe)
	return tr, nil
}

// drive runs queued events through the loop body without the loop
// goroutine, so the checks see a settled state.
func (c *Coordinator) drive() {
	for {
		select {
		case e := <-c.events:
			c.handle(e)
		default:
			return
		}
	}
}

func newTestCoordinator() (*Coordinator, *fakeSignaler, *fakeFactory) {
	wire := &fakeSignaler{}
	factory := &fakeFactory{}
	return NewCoordinator(wire, factory, logger.Default()), wire, factory
}

func TestCoordinatorOffers(t *testing.T) {
	c, wire, factory := newTestCoordinator()

	c.Connect("bob")
	c.drive()

	if len(wire.out) != 1 || wire.out[0].t != api.Offer {
		t.Fatalf("sent %v (want one offer)", wire.out)
	}
	sig, ok := wire.out[0].payload.(api.Signal)
	if !ok || sig.Target != "bob" || len(sig.Data) == 0 {
		t.Errorf("offer signal: %+v", sig)
	}
	if s := c.sessions["bob"]; s == nil || s.State() != Offering {
		t.Errorf("session: %+v", s)
	}

	// the connect trigger is idempotent
	c.Connect("bob")
	c.drive()
	if len(wire.out) != 1 {
		t.Errorf("second connect sent %d more packets", len(wire.out)-1)
	}
	if len(factory.transports) != 1 {
		t.Errorf("%d transports were made (want 1)", len(factory.transports))
	}
}

func TestCoordinatorAnswers(t *testing.T) {
	c, wire, _ := newTestCoordinator()

	c.RemoteOffer("alice", remoteOffer())
	c.drive()

	if len(wire.out) != 1 || wire.out[0].t != api.Answer {
		t.Fatalf("sent %v (want one answer)", wire.out)
	}
	if s := c.sessions["alice"]; s == nil || s.State() != Connected {
		t.Errorf("session: %+v", s)
	}
}

func TestCoordinatorCompletesOffer(t *testing.T) {
	c, _, factory := newTestCoordinator()

	c.Connect("bob")
	c.RemoteAnswer("bob", remoteAnswer())
	c.drive()

	if s := c.sessions["bob"]; s == nil || s.State() != Connected {
		t.Fatalf("session: %+v", s)
	}
	if len(factory.transports[0].remotes) != 1 {
		t.Error("remote answer was not applied")
	}
}

func TestCoordinatorForwardsLocalCandidates(t *testing.T) {
	c, wire, factory := newTestCoordinator()

	c.Connect("bob")
	c.drive()

	// the transport discovers a candidate while the session still offers
	factory.observers[0].OnCandidate(webrtc.ICECandidateInit{Candidate: "candidate:0"})
	c.drive()

	last := wire.out[len(wire.out)-1]
	if last.t != api.IceCandidate {
		t.Fatalf("sent %v (want an ice candidate)", last.t)
	}
	if sig := last.payload.(api.Signal); sig.Target != "bob" {
		t.Errorf("candidate signal: %+v", sig)
	}
}

func TestCoordinatorQueuesEarlyCandidates(t *testing.T) {
	c, _, factory := newTestCoordinator()

	// candidates arriving while the session still offers are held
	// until the remote answer lands
	c.Connect("bob")
	c.RemoteCandidate("bob", candidate(0))
	c.RemoteCandidate("bob", candidate(1))
	c.RemoteAnswer("bob", remoteAnswer())
	c.drive()

	tr := factory.transports[0]
	if len(tr.candidates) != 2 || tr.candidates[0] != candidate(0) || tr.candidates[1] != candidate(1) {
		t.Errorf("applied candidates: %v", tr.candidates)
	}
}

func TestCoordinatorIgnoresStrayCandidates(t *testing.T) {
	c, _, factory := newTestCoordinator()

	c.Connect("bob")
	c.Teardown("bob")
	// candidates of a gone or unknown peer must not resurrect a session
	c.RemoteCandidate("bob", candidate(0))
	c.RemoteCandidate("stranger", candidate(1))
	c.drive()

	if len(c.sessions) != 0 {
		t.Errorf("%d sessions were made out of stray candidates", len(c.sessions))
	}
	if len(factory.transports) != 1 {
		t.Errorf("%d transports were made (want 1)", len(factory.transports))
	}
}

func TestCoordinatorTeardown(t *testing.T) {
	c, _, factory := newTestCoordinator()

	c.Connect("bob")
	c.Teardown("bob")
	c.drive()

	if len(c.sessions) != 0 {
		t.Errorf("%d sessions left", len(c.sessions))
	}
	if !factory.transports[0].closed {
		t.Error("transport was not closed")
	}

	// teardown of the unknown peer is a no-op
	c.Teardown("nobody")
	c.drive()
}

func TestCoordinatorDropsFailedTransport(t *testing.T) {
	c, _, factory := newTestCoordinator()

	c.Connect("bob")
	c.drive()
	factory.observers[0].OnState(webrtc.PeerConnectionStateFailed)
	c.drive()

	if len(c.sessions) != 0 {
		t.Error("failed session was kept")
	}
}

func TestCoordinatorNegotiationFault(t *testing.T) {
	c, wire, factory := newTestCoordinator()

	c.Connect("bob")
	c.drive()
	factory.transports[0].failRemote = errSessionClosed

	c.RemoteAnswer("bob", remoteAnswer())
	c.drive()

	if len(c.sessions) != 0 {
		t.Error("faulted session was kept")
	}
	if !factory.transports[0].closed {
		t.Error("faulted transport was not closed")
	}
	if last := wire.out[len(wire.out)-1]; last.t != api.Offer {
		t.Errorf("a fault must not produce packets, got %v", last.t)
	}
}

func TestCoordinatorAttachesMedia(t *testing.T) {
	c, _, factory := newTestCoordinator()
	track, err := NewTrack("audio", "audio", "opus")
	if err != nil {
		t.Fatal(err)
	}

	// media set before any session applies to the new ones
	c.AttachMedia(track)
	c.Connect("bob")
	c.drive()
	if len(factory.transports[0].tracks) != 1 {
		t.Error("media was not attached to a new session")
	}

	// and a later set reaches the live sessions
	video, err := NewTrack("video", "video", "vp8")
	if err != nil {
		t.Fatal(err)
	}
	c.AttachMedia(track, video)
	c.drive()
	if len(factory.transports[0].tracks) != 3 {
		t.Errorf("%d tracks attached (want 3)", len(factory.transports[0].tracks))
	}
}

func TestCoordinatorStop(t *testing.T) {
	c, _, factory := newTestCoordinator()
	c.Start()
	c.Connect("bob")
	c.Stop()

	if len(factory.transports) > 0 && !factory.transports[0].closed {
		t.Error("stop left an open transport")
	}
}
