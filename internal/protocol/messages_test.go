package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientMessageConfig(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"config","voice":"adam"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage error = %v", err)
	}
	cfg, ok := msg.(Config)
	if !ok {
		t.Fatalf("message type = %T, want Config", msg)
	}
	if cfg.Voice != "adam" {
		t.Fatalf("cfg.Voice = %q, want %q", cfg.Voice, "adam")
	}
}

func TestParseClientMessageUnsupported(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"mute"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageInvalidJSON(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{oops`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestWireShapes(t *testing.T) {
	cases := []struct {
		name string
		msg  any
		want string
	}{
		{"transcript", NewTranscript("hello", true), `{"type":"transcript","text":"hello","is_final":true}`},
		{"response", NewResponse("hi there"), `{"type":"response","text":"hi there"}`},
		{"audio", NewAudio("UENN"), `{"type":"audio","data":"UENN"}`},
		{"audio_end", NewAudioEnd(), `{"type":"audio_end"}`},
		{"status", NewStatus(StatusThinking), `{"type":"status","status":"thinking"}`},
		{"error", NewError("stt unavailable"), `{"type":"error","message":"stt unavailable"}`},
		{"ping", NewPing(), `{"type":"ping"}`},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(tc.msg)
		if err != nil {
			t.Fatalf("%s: marshal error = %v", tc.name, err)
		}
		if string(raw) != tc.want {
			t.Fatalf("%s = %s, want %s", tc.name, raw, tc.want)
		}
	}
}
