package api

import "github.com/goccy/go-json"

type (
	// RoomRequest asks the relay to create or join a named room.
	RoomRequest struct {
		Rid      string `json:"room_id"`
		Password string `json:"password,omitempty"`
	}
	// RoomResponse is a synchronous answer to a RoomRequest. On success it
	// carries the caller's own connection id as the relay sees it, which is
	// the name other occupants will know the caller by.
	RoomResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
		Id      string `json:"user_id,omitempty"`
	}
	// User carries a connection id in join/leave notifications.
	User struct {
		Id string `json:"user_id"`
	}
	// Signal is one negotiation artifact (offer, answer, or an ICE candidate).
	// The relay reads only the target field and never the data, which stays an
	// opaque document of the peers' transport.
	Signal struct {
		Target string          `json:"target,omitempty"`
		From   string          `json:"from,omitempty"`
		Data   json.RawMessage `json:"data"`
	}
)

// Validate checks the relay-required fields of an inbound signal.
func (s *Signal) Validate() error {
	if s == nil || s.Target == "" || len(s.Data) == 0 {
		return ErrMalformed
	}
	return nil
}

type (
	// AudioSegment is a short recorded audio segment for transcription.
	// The audio bytes are base64-coded by the JSON codec.
	AudioSegment struct {
		Rid       string `json:"room_id"`
		Audio     []byte `json:"audio"`
		Timestamp int64  `json:"timestamp"`
	}
	// TranscriptResult is a speech-to-text line fanned out to the whole room.
	TranscriptResult struct {
		UserId    string `json:"user_id"`
		Text      string `json:"text"`
		Timestamp int64  `json:"timestamp"`
		Final     bool   `json:"is_final"`
	}
	// TranslateRequest asks the relay to translate a transcript line.
	TranslateRequest struct {
		Rid        string `json:"room_id"`
		Text       string `json:"text"`
		TargetLang string `json:"target_lang"`
		Timestamp  int64  `json:"timestamp"`
	}
	// TranslationResult is a translated line fanned out to the whole room.
	TranslationResult struct {
		UserId         string `json:"user_id"`
		OriginalText   string `json:"original_text"`
		TranslatedText string `json:"translated_text"`
		TargetLang     string `json:"target_lang"`
		Timestamp      int64  `json:"timestamp"`
	}
)
