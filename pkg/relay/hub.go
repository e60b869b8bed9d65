package relay

import (
	"context"
	"net/http"

	"github.com/babelcall/babelcall/pkg/api"
	"github.com/babelcall/babelcall/pkg/caption"
	"github.com/babelcall/babelcall/pkg/com"
	"github.com/babelcall/babelcall/pkg/config"
	"github.com/babelcall/babelcall/pkg/logger"
)

// Hub routes packets between the connected signaling clients.
// For the negotiation kinds it is a blind forwarder: the payloads
// stay opaque, only the target connection id is read.
type Hub struct {
	conf        config.RelayConfig
	connector   *com.Connector
	users       com.NetMap[com.Uid, *User]
	rooms       *Registry
	transcriber *caption.Transcriber
	translator  *caption.Translator
	log         *logger.Logger
}

func NewHub(conf config.RelayConfig, log *logger.Logger) *Hub {
	return &Hub{
		conf:        conf,
		connector:   com.NewConnector(com.WithOrigin(conf.Relay.Origin)),
		users:       com.NewNetMap[com.Uid, *User](),
		rooms:       NewRegistry(log),
		transcriber: caption.NewTranscriber(conf.Caption.Transcribe, log),
		translator:  caption.NewTranslator(conf.Caption.Translate, log),
		log:         log,
	}
}

// handleUserConnection handles all websocket connections of the call clients.
func (h *Hub) handleUserConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.connector.NewServer(w, r, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("couldn't init user connection")
		return
	}
	usr := NewUser(conn, h.log)
	usr.Log.Info().Msg("Connect")

	h.users.Add(usr)
	metricClients.Inc()
	defer h.disconnect(usr)

	h.useRoutes(usr)
	<-usr.Listen()
}

// disconnect drops the user and implicitly leaves its room, the
// remaining occupant gets notified about the departure.
func (h *Hub) disconnect(usr *User) {
	h.users.Remove(usr)
	metricClients.Dec()
	if rid, peer, ok := h.rooms.Leave(usr.Id()); ok && !peer.IsEmpty() {
		if mate, err := h.users.Find(peer); err == nil {
			mate.Notify(api.UserDisconnected, api.User{Id: usr.String()})
		}
		usr.Log.Info().Msgf("Left room [%v]", rid)
	}
	usr.Disconnect()
	usr.Log.Info().Msg("Disconnect")
}

// useRoutes adds all user packet routes.
func (h *Hub) useRoutes(usr *User) {
	usr.OnPacket(func(p com.In) error {
		switch p.T {
		case api.CreateRoom:
			rq := api.Unwrap[api.RoomRequest](p.Payload)
			if rq == nil || rq.Rid == "" {
				usr.Route(p, api.RoomResponse{Message: "malformed room request"})
				return api.ErrMalformed
			}
			usr.Route(p, roomResponse(usr.String(), h.rooms.Create(rq.Rid, rq.Password, usr.Id())))
		case api.JoinRoom:
			rq := api.Unwrap[api.RoomRequest](p.Payload)
			if rq == nil || rq.Rid == "" {
				usr.Route(p, api.RoomResponse{Message: "malformed room request"})
				return api.ErrMalformed
			}
			peer, err := h.rooms.Join(rq.Rid, rq.Password, usr.Id())
			usr.Route(p, roomResponse(usr.String(), err))
			if err == nil {
				if mate, err := h.users.Find(peer); err == nil {
					mate.Notify(api.UserConnected, api.User{Id: usr.String()})
				}
			}
		case api.Offer, api.Answer, api.IceCandidate:
			return h.forward(usr, p)
		case api.AudioChunk:
			return h.handleAudioChunk(usr, p)
		case api.Translate:
			return h.handleTranslate(usr, p)
		default:
			usr.Log.Warn().Msgf("Unknown packet %v", uint8(p.T))
		}
		return nil
	})
}

func roomResponse(id string, err error) api.RoomResponse {
	if err != nil {
		return api.RoomResponse{Message: err.Error()}
	}
	return api.RoomResponse{Success: true, Id: id}
}

// forward relays a negotiation packet to the connection named by its
// target field. A gone target is a silent no-op: in-room peers learn
// each other's ids only from the join notification, so a miss here
// means the peer has already disconnected.
func (h *Hub) forward(usr *User, p com.In) error {
	rq := api.Unwrap[api.Signal](p.Payload)
	if err := rq.Validate(); err != nil {
		return err
	}
	target, err := com.UidFrom(rq.Target)
	if err != nil {
		return api.ErrMalformed
	}
	mate, err := h.users.Find(target)
	if err != nil {
		usr.Log.Debug().Msgf("%s target %s is gone", p.T, rq.Target)
		return nil
	}
	mate.Notify(p.T, api.Signal{From: usr.String(), Data: rq.Data})
	metricRelayed.WithLabelValues(p.T.String()).Inc()
	return nil
}

// handleAudioChunk transcribes a user audio segment and fans the text
// out to the whole room, the sender included. Transcription faults are
// logged and never surface to the room.
func (h *Hub) handleAudioChunk(usr *User, p com.In) error {
	rq := api.Unwrap[api.AudioSegment](p.Payload)
	if rq == nil || rq.Rid == "" || len(rq.Audio) == 0 {
		return api.ErrMalformed
	}
	if !h.transcriber.IsEnabled() {
		usr.Log.Error().Msg("speech-to-text api key is not set")
		return nil
	}
	if _, ok := h.rooms.Mates(rq.Rid, usr.Id()); !ok {
		usr.Log.Warn().Msgf("audio chunk for the foreign room [%v]", rq.Rid)
		return nil
	}
	go func() {
		text, err := h.transcriber.Transcribe(context.Background(), rq.Audio)
		if err != nil {
			usr.Log.Error().Err(err).Msg("transcription fail")
			return
		}
		if text == "" {
			return
		}
		h.toRoom(rq.Rid, usr, api.Transcript, api.TranscriptResult{
			UserId:    usr.String(),
			Text:      text,
			Timestamp: rq.Timestamp,
			Final:     true,
		})
		metricTranscripts.Inc()
	}()
	return nil
}

// handleTranslate translates a transcript line and fans it out to the
// whole room.
func (h *Hub) handleTranslate(usr *User, p com.In) error {
	rq := api.Unwrap[api.TranslateRequest](p.Payload)
	if rq == nil || rq.Rid == "" || rq.Text == "" || rq.TargetLang == "" {
		return api.ErrMalformed
	}
	if !h.translator.IsEnabled() {
		usr.Log.Error().Msg("translation api key is not set")
		return nil
	}
	if _, ok := h.rooms.Mates(rq.Rid, usr.Id()); !ok {
		usr.Log.Warn().Msgf("translation for the foreign room [%v]", rq.Rid)
		return nil
	}
	go func() {
		translated, err := h.translator.Translate(context.Background(), rq.Text, rq.TargetLang)
		if err != nil {
			usr.Log.Error().Err(err).Msg("translation fail")
			return
		}
		h.toRoom(rq.Rid, usr, api.Translation, api.TranslationResult{
			UserId:         usr.String(),
			OriginalText:   rq.Text,
			TranslatedText: translated,
			TargetLang:     rq.TargetLang,
			Timestamp:      rq.Timestamp,
		})
		metricTranslations.Inc()
	}()
	return nil
}

// toRoom sends a packet to every current member of the room.
// Membership is re-read at send time since transcription is slow.
func (h *Hub) toRoom(rid string, usr *User, t api.PT, payload any) {
	members, ok := h.rooms.Mates(rid, usr.Id())
	if !ok {
		return
	}
	for _, id := range members {
		if mate, err := h.users.Find(id); err == nil {
			mate.Notify(t, payload)
		}
	}
}
