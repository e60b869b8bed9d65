// Package api defines the signaling protocol between call peers and the relay.
//
// Each message is a JSON-encoded "packet" of the following structure:
//
//	id - (optional) a unique packet id for request/response correlation;
//	 t - (required) one of the predefined unique packet types;
//	 p - (optional) packet payload with type-dependent data.
//
// Room create/join requests carry an id and get a response packet with the
// same id back. Everything else is fire-and-forget: notifications from the
// relay and the offer/answer/ice-candidate kinds which the relay blindly
// forwards to the connection named by the target field.
package api

import (
	"errors"

	"github.com/goccy/go-json"
)

// PT is a packet type.
type PT uint8

// Packet codes:
//
//	1x - room operations
//	2x - peer negotiation kinds, relayed as-is
//	3x - caption artifacts
const (
	CreateRoom       PT = 10
	JoinRoom         PT = 11
	UserConnected    PT = 12
	UserDisconnected PT = 13
	Offer            PT = 20
	Answer           PT = 21
	IceCandidate     PT = 22
	AudioChunk       PT = 30
	Transcript       PT = 31
	Translate        PT = 32
	Translation      PT = 33
)

func (p PT) String() string {
	switch p {
	case CreateRoom:
		return "CreateRoom"
	case JoinRoom:
		return "JoinRoom"
	case UserConnected:
		return "UserConnected"
	case UserDisconnected:
		return "UserDisconnected"
	case Offer:
		return "Offer"
	case Answer:
		return "Answer"
	case IceCandidate:
		return "IceCandidate"
	case AudioChunk:
		return "AudioChunk"
	case Transcript:
		return "Transcript"
	case Translate:
		return "Translate"
	case Translation:
		return "Translation"
	default:
		return "Unknown"
	}
}

var ErrMalformed = errors.New("malformed")

func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

func UnwrapChecked[T any](bytes []byte, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	return Unwrap[T](bytes), nil
}
