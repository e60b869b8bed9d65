package api

import (
	"errors"
	"testing"
)

func TestSignalValidate(t *testing.T) {
	tests := []struct {
		name string
		sig  *Signal
		ok   bool
	}{
		{name: "nil", sig: nil},
		{name: "no target", sig: &Signal{Data: []byte(`{}`)}},
		{name: "no data", sig: &Signal{Target: "x"}},
		{name: "ok", sig: &Signal{Target: "x", Data: []byte(`{}`)}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sig.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrMalformed) {
				t.Errorf("Validate() = %v, want %v", err, ErrMalformed)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	if out := Unwrap[RoomRequest]([]byte(`{"room_id":"r1","password":"p"}`)); out == nil || out.Rid != "r1" {
		t.Errorf("unwrap: %+v", out)
	}
	if out := Unwrap[RoomRequest]([]byte(`{broken`)); out != nil {
		t.Errorf("unwrap of garbage: %+v", out)
	}
}
